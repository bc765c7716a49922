package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/cas"
	"github.com/papercomputeco/courier/pkg/eventstream"
	"github.com/papercomputeco/courier/pkg/logger"
	"github.com/papercomputeco/courier/pkg/storage/inmemory"
)

const testPassword = "s3cret-pass"

type result struct {
	status int
	header http.Header
	body   []byte
}

func (r result) decode(v any) {
	ExpectWithOffset(1, json.Unmarshal(r.body, v)).To(Succeed(), string(r.body))
}

func (r result) detail() string {
	var d DetailResponse
	r.decode(&d)
	return d.Detail
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

func (r *recordingEnqueuer) Events() []*eventstream.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.Event(nil), r.events...)
}

// newTestServer builds a server on a fresh in-memory driver. The picture
// store uses the same driver unless storeConfig names another.
func newTestServer(config Config, storeConfig cas.Config) (*Server, *inmemory.Driver) {
	driver := inmemory.NewDriver()
	if storeConfig.Driver == nil {
		storeConfig.Driver = driver
	}
	store, err := cas.NewStore(storeConfig)
	Expect(err).NotTo(HaveOccurred())

	server, err := NewServer(config, driver, store, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return server, driver
}

func do(s *Server, req *http.Request) result {
	resp, err := s.app.Test(req, -1)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return result{status: resp.StatusCode, header: resp.Header, body: body}
}

func jsonRequest(method, target string, body any, token string) *http.Request {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func formRequest(target string, form url.Values, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func uploadRequest(target, token string, data []byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(PictureField, "upload.bin")
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(w.Close()).To(Succeed())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func register(s *Server, username, first, last string) {
	res := do(s, jsonRequest(http.MethodPost, "/register", account.Registration{
		Username:  username,
		Password:  testPassword,
		FirstName: first,
		LastName:  last,
	}, ""))
	ExpectWithOffset(1, res.status).To(Equal(fiber.StatusOK), string(res.body))
}

func login(s *Server, username string) string {
	res := do(s, jsonRequest(http.MethodPost, "/login", account.Credentials{
		Username: username,
		Password: testPassword,
	}, ""))
	ExpectWithOffset(1, res.status).To(Equal(fiber.StatusOK), string(res.body))

	var lr LoginResponse
	res.decode(&lr)
	return lr.Token
}

// checker returns a small paletted image that PNG and GIF both represent
// exactly.
func checker(variant uint8) *image.Paletted {
	pal := color.Palette{color.Black, color.White, color.RGBA{R: 255, A: 255}}
	img := image.NewPaletted(image.Rect(0, 0, 6, 6), pal)
	for y := range 6 {
		for x := range 6 {
			img.SetColorIndex(x, y, uint8(x+y+int(variant))%3)
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

var _ = Describe("NewServer", func() {
	It("requires a driver and a picture store", func() {
		driver := inmemory.NewDriver()
		store, err := cas.NewStore(cas.Config{Driver: driver})
		Expect(err).NotTo(HaveOccurred())

		_, err = NewServer(Config{}, nil, store, logger.Nop())
		Expect(err).To(HaveOccurred())

		_, err = NewServer(Config{}, driver, nil, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("applies pagination defaults", func() {
		server, _ := newTestServer(Config{PageSize: 500}, cas.Config{})
		Expect(server.config.MaxPageSize).To(Equal(DefaultMaxPageSize))
		Expect(server.config.PageSize).To(Equal(DefaultMaxPageSize))
		Expect(server.config.BodyLimit).To(Equal(DefaultBodyLimit))
	})
})

var _ = Describe("Basic routes", func() {
	var server *Server

	BeforeEach(func() {
		server, _ = newTestServer(Config{}, cas.Config{})
	})

	It("answers ping", func() {
		res := do(server, httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(res.status).To(Equal(fiber.StatusOK))
		Expect(string(res.body)).To(Equal(`"pong"`))
	})

	It("says hello", func() {
		res := do(server, httptest.NewRequest(http.MethodGet, "/hello", nil))
		Expect(res.status).To(Equal(fiber.StatusOK))
		Expect(res.detail()).To(Equal("Hello world!"))
	})

	It("renders unknown routes as a detail body", func() {
		res := do(server, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
		Expect(res.status).To(Equal(fiber.StatusNotFound))
		Expect(res.detail()).To(Equal(detailNotFound))
	})
})
