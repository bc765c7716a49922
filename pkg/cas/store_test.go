package cas_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/image/bmp"

	"github.com/papercomputeco/courier/pkg/cas"
	"github.com/papercomputeco/courier/pkg/eventstream"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage"
	"github.com/papercomputeco/courier/pkg/storage/inmemory"
)

// checker returns a small paletted image that every lossless encoder
// represents exactly.
func checker() *image.Paletted {
	pal := color.Palette{color.Black, color.White, color.RGBA{R: 255, A: 255}}
	img := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)
	for y := range 8 {
		for x := range 8 {
			img.SetColorIndex(x, y, uint8((x+y)%3))
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func encodeGIF(img *image.Paletted) []byte {
	var buf bytes.Buffer
	Expect(gif.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

func encodeBMP(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(bmp.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

// flakyDriver wraps a PictureDriver and lets specs intercept calls.
type flakyDriver struct {
	storage.PictureDriver

	onLookup func()
	onInsert func(rec *picture.Record) error
	lookups  atomic.Int32
}

func (d *flakyDriver) PicturesByDigest(ctx context.Context, digest string) ([]*picture.Record, error) {
	d.lookups.Add(1)
	if d.onLookup != nil {
		d.onLookup()
	}
	return d.PictureDriver.PicturesByDigest(ctx, digest)
}

func (d *flakyDriver) InsertPicture(ctx context.Context, rec *picture.Record) error {
	if d.onInsert != nil {
		if err := d.onInsert(rec); err != nil {
			return err
		}
	}
	return d.PictureDriver.InsertPicture(ctx, rec)
}

type recordingEnqueuer struct {
	mu     sync.Mutex
	events []*eventstream.Event
}

func (r *recordingEnqueuer) Enqueue(e *eventstream.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		store  *cas.Store
		events *recordingEnqueuer
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		events = &recordingEnqueuer{}

		var err error
		store, err = cas.NewStore(cas.Config{Driver: driver, Events: events})
		Expect(err).NotTo(HaveOccurred())
	})

	count := func() int {
		n, err := driver.CountPictures(ctx)
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	It("requires a driver", func() {
		_, err := cas.NewStore(cas.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("LookupOrInsert", func() {
		It("returns the same record for the same bytes", func() {
			first, created, err := store.LookupOrInsert(ctx, []byte("payload"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			second, created, err := store.LookupOrInsert(ctx, []byte("payload"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(second.ID).To(Equal(first.ID))
			Expect(count()).To(Equal(1))
		})

		It("fills the record fields", func() {
			rec, _, err := store.LookupOrInsert(ctx, []byte("payload"))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Digest).To(Equal(picture.Fingerprint([]byte("payload"))))
			Expect(rec.Checksum).To(Equal(picture.Checksum([]byte("payload"))))
			Expect(rec.Size).To(Equal(7))
			Expect(rec.Data).To(Equal([]byte("payload")))
		})

		It("keeps distinct payloads apart when fingerprints collide", func() {
			colliding, err := cas.NewStore(cas.Config{
				Driver:      driver,
				Fingerprint: func([]byte) string { return "same" },
			})
			Expect(err).NotTo(HaveOccurred())

			a, createdA, err := colliding.LookupOrInsert(ctx, []byte("alpha"))
			Expect(err).NotTo(HaveOccurred())
			b, createdB, err := colliding.LookupOrInsert(ctx, []byte("beta"))
			Expect(err).NotTo(HaveOccurred())

			Expect(createdA).To(BeTrue())
			Expect(createdB).To(BeTrue())
			Expect(a.ID).NotTo(Equal(b.ID))
			Expect(a.Digest).To(Equal(b.Digest))

			again, created, err := colliding.LookupOrInsert(ctx, []byte("beta"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(again.ID).To(Equal(b.ID))
			Expect(count()).To(Equal(2))
		})

		It("creates exactly one record under concurrent identical uploads", func() {
			const n = 32
			ids := make([]string, n)
			created := atomic.Int32{}

			var wg sync.WaitGroup
			for i := range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					rec, isNew, err := store.LookupOrInsert(ctx, []byte("same content"))
					Expect(err).NotTo(HaveOccurred())
					ids[i] = rec.ID
					if isNew {
						created.Add(1)
					}
				}()
			}
			wg.Wait()

			Expect(created.Load()).To(BeEquivalentTo(1))
			for _, id := range ids {
				Expect(id).To(Equal(ids[0]))
			}
			Expect(count()).To(Equal(1))
		})

		It("rejects oversized payloads before hashing", func() {
			var hashed atomic.Int32
			small, err := cas.NewStore(cas.Config{
				Driver:   driver,
				MaxBytes: 4,
				Fingerprint: func(b []byte) string {
					hashed.Add(1)
					return picture.Fingerprint(b)
				},
			})
			Expect(err).NotTo(HaveOccurred())

			_, _, err = small.LookupOrInsert(ctx, []byte("too large"))
			Expect(err).To(MatchError(picture.ErrPayloadTooLarge))
			Expect(hashed.Load()).To(BeZero())
			Expect(count()).To(BeZero())

			_, _, err = small.LookupOrInsert(ctx, []byte("okay"))
			Expect(err).NotTo(HaveOccurred())
			Expect(hashed.Load()).To(BeEquivalentTo(1))
		})

		It("accepts a payload of exactly the limit", func() {
			_, _, err := store.LookupOrInsert(ctx, make([]byte, picture.MaxBytes))
			Expect(err).NotTo(HaveOccurred())

			_, _, err = store.LookupOrInsert(ctx, make([]byte, picture.MaxBytes+1))
			Expect(err).To(MatchError(picture.ErrPayloadTooLarge))
		})

		It("re-reads after losing an insert race", func() {
			flaky := &flakyDriver{PictureDriver: driver}
			raced := false
			flaky.onInsert = func(rec *picture.Record) error {
				if raced {
					return nil
				}
				raced = true
				// Another process stores the same bytes first.
				winner := *rec
				winner.ID = "winner"
				Expect(driver.InsertPicture(ctx, &winner)).To(Succeed())
				return storage.ErrConflict
			}

			s, err := cas.NewStore(cas.Config{Driver: flaky})
			Expect(err).NotTo(HaveOccurred())

			rec, created, err := s.LookupOrInsert(ctx, []byte("contended"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(rec.ID).To(Equal("winner"))
			Expect(flaky.lookups.Load()).To(BeEquivalentTo(2))
		})

		It("gives up after repeated conflicts", func() {
			flaky := &flakyDriver{PictureDriver: driver}
			flaky.onInsert = func(*picture.Record) error { return storage.ErrConflict }

			s, err := cas.NewStore(cas.Config{Driver: flaky})
			Expect(err).NotTo(HaveOccurred())

			_, _, err = s.LookupOrInsert(ctx, []byte("contended"))
			Expect(err).To(MatchError(picture.ErrStoreUnavailable))
			Expect(flaky.lookups.Load()).To(BeEquivalentTo(3))
		})

		It("wraps other driver errors as unavailable", func() {
			flaky := &flakyDriver{PictureDriver: driver}
			flaky.onInsert = func(*picture.Record) error { return errors.New("disk full") }

			s, err := cas.NewStore(cas.Config{Driver: flaky})
			Expect(err).NotTo(HaveOccurred())

			_, _, err = s.LookupOrInsert(ctx, []byte("x"))
			Expect(err).To(MatchError(picture.ErrStoreUnavailable))
			Expect(err).To(MatchError(ContainSubstring("disk full")))
		})

		It("times out waiting for a held digest lock", func() {
			release := make(chan struct{})
			entered := make(chan struct{}, 1)
			flaky := &flakyDriver{PictureDriver: driver}
			flaky.onLookup = func() {
				select {
				case entered <- struct{}{}:
					<-release
				default:
				}
			}

			s, err := cas.NewStore(cas.Config{Driver: flaky, LockTimeout: 50 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() {
				_, _, err := s.LookupOrInsert(ctx, []byte("held"))
				done <- err
			}()
			Eventually(entered).Should(HaveLen(1))

			_, _, err = s.LookupOrInsert(ctx, []byte("held"))
			Expect(err).To(MatchError(picture.ErrStoreUnavailable))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("stops waiting for a lock when the context is cancelled", func() {
			release := make(chan struct{})
			entered := make(chan struct{}, 1)
			flaky := &flakyDriver{PictureDriver: driver}
			flaky.onLookup = func() {
				select {
				case entered <- struct{}{}:
					<-release
				default:
				}
			}

			s, err := cas.NewStore(cas.Config{Driver: flaky, LockTimeout: time.Minute})
			Expect(err).NotTo(HaveOccurred())

			go func() { _, _, _ = s.LookupOrInsert(ctx, []byte("held")) }()
			Eventually(entered).Should(HaveLen(1))

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err = s.LookupOrInsert(cctx, []byte("held"))
			Expect(err).To(MatchError(picture.ErrStoreUnavailable))
			Expect(err).To(MatchError(context.Canceled))

			close(release)
		})

		It("emits an event only for new records", func() {
			_, _, err := store.LookupOrInsert(ctx, []byte("once"))
			Expect(err).NotTo(HaveOccurred())
			_, _, err = store.LookupOrInsert(ctx, []byte("once"))
			Expect(err).NotTo(HaveOccurred())

			Expect(events.events).To(HaveLen(1))
			Expect(events.events[0].EventType).To(Equal(eventstream.EventTypePictureStored))
			Expect(events.events[0].Picture.Digest).To(Equal(picture.Fingerprint([]byte("once"))))
		})
	})

	Describe("Put", func() {
		It("deduplicates the same pixels across encodings", func() {
			img := checker()

			fromPNG, created, err := store.Put(ctx, encodePNG(img))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			fromGIF, created, err := store.Put(ctx, encodeGIF(img))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			fromBMP, created, err := store.Put(ctx, encodeBMP(img))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			Expect(fromGIF.ID).To(Equal(fromPNG.ID))
			Expect(fromBMP.ID).To(Equal(fromPNG.ID))
			Expect(count()).To(Equal(1))
		})

		It("stores canonical PNG bytes", func() {
			rec, _, err := store.Put(ctx, encodeGIF(checker()))
			Expect(err).NotTo(HaveOccurred())

			_, format, err := image.DecodeConfig(bytes.NewReader(rec.Data))
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})

		It("rejects bytes that are not an image without storing anything", func() {
			_, _, err := store.Put(ctx, []byte("definitely not an image"))
			Expect(err).To(MatchError(picture.ErrNotAnImage))
			Expect(count()).To(BeZero())
			Expect(events.events).To(BeEmpty())
		})

		It("rejects a truncated image", func() {
			data := encodePNG(checker())
			_, _, err := store.Put(ctx, data[:len(data)/2])
			Expect(err).To(MatchError(picture.ErrNotAnImage))
			Expect(count()).To(BeZero())
		})
	})

	Describe("Get", func() {
		It("returns a stored record", func() {
			rec, _, err := store.LookupOrInsert(ctx, []byte("payload"))
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Data).To(Equal([]byte("payload")))
		})

		It("maps a missing record to ErrNotFound", func() {
			_, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000")
			Expect(err).To(MatchError(picture.ErrNotFound))
		})
	})
})
