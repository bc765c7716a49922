package account_test

import (
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/pkg/account"
)

func validRegistration() account.Registration {
	return account.Registration{
		Username:  "alice",
		Password:  "correct horse",
		FirstName: "Alice",
		LastName:  "Smith",
	}
}

func fieldErrors(err error) account.ValidationErrors {
	var verr account.ValidationErrors
	Expect(errors.As(err, &verr)).To(BeTrue(), "expected ValidationErrors, got %v", err)
	return verr
}

var _ = Describe("Registration", func() {
	It("accepts a valid registration", func() {
		Expect(validRegistration().Validate()).To(Succeed())
	})

	DescribeTable("rejects invalid usernames",
		func(username string) {
			r := validRegistration()
			r.Username = username
			Expect(fieldErrors(r.Validate())).To(HaveKey("username"))
		},
		Entry("blank", ""),
		Entry("space", "al ice"),
		Entry("pipe", "al|ice"),
		Entry("slash", "al/ice"),
		Entry("too long", strings.Repeat("a", 151)),
	)

	DescribeTable("accepts usernames with allowed punctuation",
		func(username string) {
			Expect(account.ValidUsername(username)).To(BeTrue())
		},
		Entry("at", "a@b"),
		Entry("dot plus dash underscore", "a.b+c-d_e"),
		Entry("unicode letters", "Émilie"),
		Entry("150 characters", strings.Repeat("a", 150)),
	)

	DescribeTable("rejects weak passwords",
		func(password string) {
			r := validRegistration()
			r.Password = password
			Expect(fieldErrors(r.Validate())).To(HaveKey("password"))
		},
		Entry("too short", "short"),
		Entry("entirely numeric", "1234567890"),
		Entry("longer than bcrypt accepts", strings.Repeat("x", 73)),
	)

	It("rejects a password equal to the username ignoring case", func() {
		r := validRegistration()
		r.Username = "longusername"
		r.Password = "LongUsername"
		Expect(fieldErrors(r.Validate())["password"]).To(ContainElement(ContainSubstring("too similar")))
	})

	It("rejects blank names", func() {
		r := validRegistration()
		r.FirstName = "   "
		r.LastName = ""
		verr := fieldErrors(r.Validate())
		Expect(verr).To(HaveKey("first_name"))
		Expect(verr).To(HaveKey("last_name"))
	})

	It("reports every failing field at once", func() {
		verr := fieldErrors(account.Registration{}.Validate())
		Expect(verr).To(HaveKey("username"))
		Expect(verr).To(HaveKey("password"))
		Expect(verr).To(HaveKey("first_name"))
		Expect(verr).To(HaveKey("last_name"))
		Expect(verr.Error()).To(HavePrefix("validation failed: first_name"))
	})
})

var _ = Describe("Credentials", func() {
	It("requires a username and a password", func() {
		verr := fieldErrors(account.Credentials{}.Validate())
		Expect(verr).To(HaveKey("username"))
		Expect(verr).To(HaveKey("password"))
	})

	It("does not apply password strength rules", func() {
		Expect(account.Credentials{Username: "alice", Password: "1"}.Validate()).To(Succeed())
	})
})

var _ = Describe("User", func() {
	It("hashes the password and verifies it", func() {
		u, err := account.NewUser(validRegistration())
		Expect(err).NotTo(HaveOccurred())
		Expect(u.PasswordHash).NotTo(BeEmpty())
		Expect(string(u.PasswordHash)).NotTo(ContainSubstring("correct horse"))

		Expect(u.CheckPassword("correct horse")).To(BeTrue())
		Expect(u.CheckPassword("wrong horse")).To(BeFalse())
	})

	It("returns validation errors instead of a user", func() {
		r := validRegistration()
		r.Password = "1"
		u, err := account.NewUser(r)
		Expect(u).To(BeNil())
		Expect(fieldErrors(err)).To(HaveKey("password"))
	})

	It("exposes the searchable fields", func() {
		u, err := account.NewUser(validRegistration())
		Expect(err).NotTo(HaveOccurred())

		c := u.Candidate()
		Expect(c.Key).To(Equal("alice"))
		Expect(c.Value("username")).To(Equal("alice"))
		Expect(c.Value("first_name")).To(Equal("Alice"))
		Expect(c.Value("last_name")).To(Equal("Smith"))
	})
})

var _ = Describe("Session", func() {
	It("issues unique tokens", func() {
		a := account.NewSession("alice", time.Hour)
		b := account.NewSession("alice", time.Hour)
		Expect(a.Token).NotTo(Equal(b.Token))
	})

	It("expires after its ttl", func() {
		s := account.NewSession("alice", time.Hour)
		Expect(s.Expired(s.CreatedAt)).To(BeFalse())
		Expect(s.Expired(s.CreatedAt.Add(time.Hour))).To(BeTrue())
	})

	It("falls back to the default ttl", func() {
		s := account.NewSession("alice", 0)
		Expect(s.ExpiresAt.Sub(s.CreatedAt)).To(Equal(account.DefaultSessionTTL))
	})
})
