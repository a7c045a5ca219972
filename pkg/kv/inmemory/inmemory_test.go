package inmemory_test

import (
	"context"
	"strconv"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/kv/inmemory"
	testutils "github.com/streamrelay/streamrelay/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(testutils.DriverSuite{
		New: func() kv.Driver { return inmemory.NewDriver() },
	})

	It("decrements atomically under concurrent callers", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()
		_, err := d.Set(ctx, "tok", "100", kv.SetOptions{})
		Expect(err).NotTo(HaveOccurred())

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = d.Decr(ctx, "tok")
			}()
		}
		wg.Wait()

		v, err := d.Get(ctx, "tok")
		Expect(err).NotTo(HaveOccurred())
		Expect(strconv.Atoi(v)).To(Equal(50))
	})
})
