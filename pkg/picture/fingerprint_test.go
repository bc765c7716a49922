package picture_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/pkg/picture"
)

var _ = Describe("Fingerprint", func() {
	It("is the hex SHA-256 of the data", func() {
		Expect(picture.Fingerprint([]byte("abc"))).To(Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
	})

	It("differs from the checksum", func() {
		data := []byte("abc")
		Expect(picture.Checksum(data)).To(HaveLen(64))
		Expect(picture.Checksum(data)).NotTo(Equal(picture.Fingerprint(data)))
	})

	It("changes with a single byte", func() {
		Expect(picture.Fingerprint([]byte("abc"))).NotTo(Equal(picture.Fingerprint([]byte("abd"))))
	})
})
