package dialogue_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/pkg/dialogue"
)

var _ = Describe("Dialogue", func() {
	It("keeps members sorted", func() {
		d, err := dialogue.NewPair("bob", "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Users).To(Equal([]string{"alice", "bob"}))
		Expect(d.ID).NotTo(BeEmpty())
		Expect(d.UpdatedAt).To(Equal(d.CreatedAt))
	})

	It("refuses a dialogue with yourself", func() {
		_, err := dialogue.NewPair("alice", "alice")
		Expect(err).To(MatchError(dialogue.ErrSelfDialogue))
	})

	It("reports membership", func() {
		d, _ := dialogue.NewPair("alice", "bob")
		Expect(d.HasMember("alice")).To(BeTrue())
		Expect(d.HasMember("carol")).To(BeFalse())
	})

	It("derives the same pair key in either order", func() {
		Expect(dialogue.PairKey("bob", "alice")).To(Equal(dialogue.PairKey("alice", "bob")))
		Expect(dialogue.PairKey("alice", "bob")).To(Equal("alice|bob"))
	})
})

var _ = Describe("Message", func() {
	It("starts unedited with a fresh id", func() {
		m := dialogue.NewMessage("dlg", "alice", "pic")
		Expect(m.ID).NotTo(BeEmpty())
		Expect(m.IsEdited).To(BeFalse())
		Expect(m.FromUser).To(Equal("alice"))
		Expect(m.PictureID).To(Equal("pic"))
	})
})
