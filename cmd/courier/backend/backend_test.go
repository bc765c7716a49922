package backend_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/cmd/courier/backend"
	"github.com/papercomputeco/courier/pkg/config"
	"github.com/papercomputeco/courier/pkg/eventstream/kafka"
	"github.com/papercomputeco/courier/pkg/eventstream/nop"
	"github.com/papercomputeco/courier/pkg/logger"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage/inmemory"
	"github.com/papercomputeco/courier/pkg/storage/sqlite"
)

var _ = Describe("ResolveSQLitePath", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("keeps absolute paths", func() {
		path, err := backend.ResolveSQLitePath("/var/lib/courier.db", tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/var/lib/courier.db"))
	})

	It("keeps in-memory databases", func() {
		path, err := backend.ResolveSQLitePath(":memory:", tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(":memory:"))
	})

	It("anchors relative paths in the courier directory", func() {
		path, err := backend.ResolveSQLitePath("courier.sqlite", tmpDir)
		Expect(err).NotTo(HaveOccurred())

		abs, err := filepath.Abs(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(abs, "courier.sqlite")))
	})
})

var _ = Describe("NewDriver", func() {
	var (
		ctx    context.Context
		cfg    *config.Config
		tmpDir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.NewDefaultConfig()
		tmpDir = GinkgoT().TempDir()
	})

	It("opens the in-memory driver", func() {
		cfg.Storage.Driver = config.DriverMemory
		driver, err := backend.NewDriver(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(driver.Close()).To(Succeed())
	})

	It("opens SQLite inside the courier directory", func() {
		driver, err := backend.NewDriver(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		DeferCleanup(driver.Close)

		_, err = os.Stat(filepath.Join(tmpDir, config.NewDefaultConfig().Storage.SQLitePath))
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a DSN for postgres", func() {
		cfg.Storage.Driver = config.DriverPostgres
		_, err := backend.NewDriver(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("postgres_dsn")))
	})

	It("rejects unknown drivers", func() {
		cfg.Storage.Driver = "mongo"
		_, err := backend.NewDriver(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unknown storage driver")))
	})
})

var _ = Describe("NewPublisher", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.NewDefaultConfig()
	})

	It("defaults to the nop publisher", func() {
		pub, err := backend.NewPublisher(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher from the broker list", func() {
		cfg.EventStream.Provider = config.EventsKafka
		cfg.EventStream.Brokers = "localhost:9092, localhost:9093"
		cfg.EventStream.Topic = "courier.test"

		pub, err := backend.NewPublisher(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pub.Close)

		kp, ok := pub.(*kafka.Publisher)
		Expect(ok).To(BeTrue())
		Expect(kp.Topic()).To(Equal("courier.test"))
	})

	It("requires brokers for kafka", func() {
		cfg.EventStream.Provider = config.EventsKafka
		_, err := backend.NewPublisher(cfg, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		cfg.EventStream.Provider = "carrier-pigeon"
		_, err := backend.NewPublisher(cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unknown event stream provider")))
	})
})

var _ = Describe("NewPictureStore", func() {
	It("applies the picture limits", func() {
		cfg := config.NewDefaultConfig()
		cfg.Picture.MaxBytes = 8

		store, err := backend.NewPictureStore(cfg, inmemory.NewDriver(), nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		_, _, err = store.LookupOrInsert(context.Background(), []byte("more than eight bytes"))
		Expect(err).To(MatchError(picture.ErrPayloadTooLarge))
	})

	It("rejects a malformed lock timeout", func() {
		cfg := config.NewDefaultConfig()
		cfg.Picture.LockTimeout = "soon"

		_, err := backend.NewPictureStore(cfg, inmemory.NewDriver(), nil, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Open", func() {
	It("wires the picture store to the event pool", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = config.DriverMemory

		b, err := backend.Open(context.Background(), cfg, GinkgoT().TempDir(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		rec, created, err := b.Pictures.LookupOrInsert(context.Background(), []byte("canonical bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		n, err := b.Driver.CountPictures(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(rec.Size).To(Equal(len("canonical bytes")))

		Expect(b.Close()).To(Succeed())
	})

	It("closes the driver when the publisher cannot be built", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = config.DriverMemory
		cfg.EventStream.Provider = "unknown"

		_, err := backend.Open(context.Background(), cfg, GinkgoT().TempDir(), logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})
