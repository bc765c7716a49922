// Package storagetest holds the behavior every storage.Driver must exhibit,
// written as shared ginkgo specs that driver packages run against themselves.
package storagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/dialogue"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage"
)

// NewUser returns a user with a throwaway password hash.
func NewUser(username, first, last string) *account.User {
	return &account.User{
		Username:     username,
		FirstName:    first,
		LastName:     last,
		PasswordHash: []byte("hash"),
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

// NewRecord returns a picture record whose data is payload.
func NewRecord(digest, checksum, payload string) *picture.Record {
	return &picture.Record{
		ID:        uuid.NewString(),
		Digest:    digest,
		Checksum:  checksum,
		Data:      []byte(payload),
		Size:      len(payload),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec and the returned driver is closed after it.
func DescribeDriver(newDriver func(ctx context.Context) storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver(ctx)
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("pictures", func() {
		It("returns no records for an unknown digest", func() {
			recs, err := driver.PicturesByDigest(ctx, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})

		It("stores and retrieves a record", func() {
			rec := NewRecord("d1", "c1", "payload")
			Expect(driver.InsertPicture(ctx, rec)).To(Succeed())

			got, err := driver.GetPicture(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Digest).To(Equal("d1"))
			Expect(got.Checksum).To(Equal("c1"))
			Expect(got.Data).To(Equal([]byte("payload")))
			Expect(got.Size).To(Equal(7))
		})

		It("keeps distinct payloads that share a digest", func() {
			first := NewRecord("shared", "c1", "one")
			second := NewRecord("shared", "c2", "two")
			Expect(driver.InsertPicture(ctx, first)).To(Succeed())
			Expect(driver.InsertPicture(ctx, second)).To(Succeed())

			recs, err := driver.PicturesByDigest(ctx, "shared")
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(2))

			n, err := driver.CountPictures(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})

		It("rejects a second record with the same digest and checksum", func() {
			Expect(driver.InsertPicture(ctx, NewRecord("d", "c", "x"))).To(Succeed())
			err := driver.InsertPicture(ctx, NewRecord("d", "c", "x"))
			Expect(err).To(MatchError(storage.ErrConflict))

			n, err := driver.CountPictures(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("reports a missing picture as not found", func() {
			_, err := driver.GetPicture(ctx, uuid.NewString())
			Expect(err).To(MatchError(storage.ErrNotFound))
		})
	})

	Describe("users", func() {
		It("creates and lists users ordered by username", func() {
			Expect(driver.CreateUser(ctx, NewUser("carol", "Carol", "Alice"))).To(Succeed())
			Expect(driver.CreateUser(ctx, NewUser("alice", "Alice", "Smith"))).To(Succeed())
			Expect(driver.CreateUser(ctx, NewUser("bob", "Bob", "Jones"))).To(Succeed())

			users, err := driver.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			names := make([]string, len(users))
			for i, u := range users {
				names[i] = u.Username
			}
			Expect(names).To(Equal([]string{"alice", "bob", "carol"}))
			Expect(users[2].LastName).To(Equal("Alice"))
		})

		It("rejects a duplicate username", func() {
			Expect(driver.CreateUser(ctx, NewUser("alice", "A", "S"))).To(Succeed())
			Expect(driver.CreateUser(ctx, NewUser("alice", "B", "T"))).To(MatchError(storage.ErrAlreadyExists))
		})

		It("reports a missing user as not found", func() {
			_, err := driver.GetUser(ctx, "ghost")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("round-trips the password hash", func() {
			Expect(driver.CreateUser(ctx, NewUser("alice", "A", "S"))).To(Succeed())
			u, err := driver.GetUser(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.PasswordHash).To(Equal([]byte("hash")))
		})
	})

	Describe("sessions", func() {
		BeforeEach(func() {
			Expect(driver.CreateUser(ctx, NewUser("alice", "A", "S"))).To(Succeed())
		})

		It("creates, reads and deletes a session", func() {
			sess := account.NewSession("alice", time.Hour)
			Expect(driver.CreateSession(ctx, sess)).To(Succeed())

			got, err := driver.GetSession(ctx, sess.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("alice"))
			Expect(got.ExpiresAt).To(BeTemporally("~", sess.ExpiresAt, time.Second))

			Expect(driver.DeleteSession(ctx, sess.Token)).To(Succeed())
			_, err = driver.GetSession(ctx, sess.Token)
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("ignores deleting an unknown token", func() {
			Expect(driver.DeleteSession(ctx, "unknown")).To(Succeed())
		})
	})

	Describe("dialogues", func() {
		BeforeEach(func() {
			for _, name := range []string{"alice", "bob", "carol"} {
				Expect(driver.CreateUser(ctx, NewUser(name, name, name))).To(Succeed())
			}
		})

		It("finds a dialogue by its pair in either order", func() {
			d, err := dialogue.NewPair("bob", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.CreateDialogue(ctx, d)).To(Succeed())

			got, err := driver.FindPairDialogue(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(d.ID))
			Expect(got.Users).To(Equal([]string{"alice", "bob"}))

			got, err = driver.GetDialogue(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Users).To(Equal([]string{"alice", "bob"}))
		})

		It("allows one dialogue per pair", func() {
			d1, _ := dialogue.NewPair("alice", "bob")
			d2, _ := dialogue.NewPair("bob", "alice")
			Expect(driver.CreateDialogue(ctx, d1)).To(Succeed())
			Expect(driver.CreateDialogue(ctx, d2)).To(MatchError(storage.ErrAlreadyExists))
		})

		It("reports a missing pair as not found", func() {
			_, err := driver.FindPairDialogue(ctx, "alice", "carol")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("lists a user's dialogues most recently updated first", func() {
			ab, _ := dialogue.NewPair("alice", "bob")
			ac, _ := dialogue.NewPair("alice", "carol")
			bc, _ := dialogue.NewPair("bob", "carol")
			for _, d := range []*dialogue.Dialogue{ab, ac, bc} {
				Expect(driver.CreateDialogue(ctx, d)).To(Succeed())
			}

			pic := NewRecord("d", "c", "x")
			Expect(driver.InsertPicture(ctx, pic)).To(Succeed())

			msg := dialogue.NewMessage(ab.ID, "alice", pic.ID)
			msg.CreatedAt = time.Now().UTC().Add(time.Minute)
			Expect(driver.CreateMessage(ctx, msg)).To(Succeed())

			ds, total, err := driver.DialoguesByUser(ctx, "alice", storage.Page{Limit: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(2))
			Expect(ds).To(HaveLen(2))
			Expect(ds[0].ID).To(Equal(ab.ID))
			Expect(ds[1].ID).To(Equal(ac.ID))

			page, total, err := driver.DialoguesByUser(ctx, "alice", storage.Page{Limit: 1, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(2))
			Expect(page).To(HaveLen(1))
			Expect(page[0].ID).To(Equal(ac.ID))
		})

		It("pages messages newest first", func() {
			d, _ := dialogue.NewPair("alice", "bob")
			Expect(driver.CreateDialogue(ctx, d)).To(Succeed())
			pic := NewRecord("d", "c", "x")
			Expect(driver.InsertPicture(ctx, pic)).To(Succeed())

			base := time.Now().UTC()
			ids := make([]string, 5)
			for i := range ids {
				m := dialogue.NewMessage(d.ID, "alice", pic.ID)
				m.CreatedAt = base.Add(time.Duration(i) * time.Second)
				Expect(driver.CreateMessage(ctx, m)).To(Succeed())
				ids[i] = m.ID
			}

			msgs, total, err := driver.MessagesByDialogue(ctx, d.ID, storage.Page{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(5))
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].ID).To(Equal(ids[4]))
			Expect(msgs[1].ID).To(Equal(ids[3]))
			Expect(msgs[0].PictureID).To(Equal(pic.ID))
			Expect(msgs[0].FromUser).To(Equal("alice"))

			tail, _, err := driver.MessagesByDialogue(ctx, d.ID, storage.Page{Limit: 2, Offset: 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(tail).To(HaveLen(1))
			Expect(tail[0].ID).To(Equal(ids[0]))
		})

		It("rejects a message for an unknown dialogue", func() {
			m := dialogue.NewMessage(uuid.NewString(), "alice", "")
			Expect(driver.CreateMessage(ctx, m)).To(MatchError(storage.ErrNotFound))
		})

		It("returns an empty page for a dialogue without messages", func() {
			d, _ := dialogue.NewPair("alice", "bob")
			Expect(driver.CreateDialogue(ctx, d)).To(Succeed())

			msgs, total, err := driver.MessagesByDialogue(ctx, d.ID, storage.Page{Limit: 20})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
			Expect(msgs).To(BeEmpty())
		})

		It("counts many dialogues for one user", func() {
			for i := range 7 {
				name := fmt.Sprintf("peer%02d", i)
				Expect(driver.CreateUser(ctx, NewUser(name, name, name))).To(Succeed())
				d, _ := dialogue.NewPair("alice", name)
				Expect(driver.CreateDialogue(ctx, d)).To(Succeed())
			}

			ds, total, err := driver.DialoguesByUser(ctx, "alice", storage.Page{Limit: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(7))
			Expect(ds).To(HaveLen(5))
		})
	})
}
