package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals a picture.stored event with expected top-level keys", func() {
		event := eventstream.NewPictureStored(eventstream.PictureMeta{
			ID:       "pic-1",
			Digest:   "abc",
			Checksum: "def",
			Size:     42,
		})

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKeyWithValue("event_type", eventstream.EventTypePictureStored))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("picture"))
		Expect(got).NotTo(HaveKey("message"))
	})

	It("keys picture events by digest and message events by dialogue", func() {
		pic := eventstream.NewPictureStored(eventstream.PictureMeta{Digest: "abc"})
		Expect(pic.Key()).To(Equal("abc"))

		msg := eventstream.NewMessageSent(eventstream.MessageMeta{DialogueID: "dlg-1"})
		Expect(msg.Key()).To(Equal("dlg-1"))
		Expect(msg.EventType).To(Equal(eventstream.EventTypeMessageSent))
	})

	It("assigns distinct event ids", func() {
		a := eventstream.NewMessageSent(eventstream.MessageMeta{})
		b := eventstream.NewMessageSent(eventstream.MessageMeta{})
		Expect(a.EventID).To(HavePrefix("evt_"))
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypePictureStored).To(Equal("courier.picture.stored"))
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).To(MatchError("nil event"))
	})
})
