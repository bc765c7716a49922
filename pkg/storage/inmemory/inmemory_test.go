package inmemory_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/courier/pkg/storage"
	"github.com/papercomputeco/courier/pkg/storage/inmemory"
	"github.com/papercomputeco/courier/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func(context.Context) storage.Driver {
		return inmemory.NewDriver()
	})

	It("admits exactly one of many concurrent identical inserts", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			conflicts int
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := d.InsertPicture(ctx, storagetest.NewRecord("d", "c", "x"))
				if err != nil {
					mu.Lock()
					conflicts++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Expect(conflicts).To(Equal(15))
		n, err := d.CountPictures(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})
})
