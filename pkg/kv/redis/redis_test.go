package redis_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/kv/redis"
	testutils "github.com/streamrelay/streamrelay/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	var mr *miniredis.Miniredis

	BeforeEach(func() {
		mr = miniredis.NewMiniRedis()
		Expect(mr.Start()).To(Succeed())
		DeferCleanup(mr.Close)
	})

	testutils.DescribeDriver(testutils.DriverSuite{
		New: func() kv.Driver {
			d, err := redis.NewDriver(context.Background(), mr.Addr())
			Expect(err).NotTo(HaveOccurred())
			return d
		},
		Advance: func(d time.Duration) { mr.FastForward(d) },
	})

	It("accepts redis:// URLs", func() {
		d, err := redis.NewDriver(context.Background(), "redis://"+mr.Addr()+"/0")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Close()).To(Succeed())
	})

	It("fails when the server is unreachable", func() {
		addr := mr.Addr()
		mr.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := redis.NewDriver(ctx, addr)
		Expect(err).To(HaveOccurred())
	})

	It("requires a target", func() {
		_, err := redis.NewDriver(context.Background(), "")
		Expect(err).To(HaveOccurred())
	})

	It("writes through to the redis keyspace", func() {
		d, err := redis.NewDriver(context.Background(), mr.Addr())
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		_, err = d.Set(context.Background(), "tok", "9", kv.SetOptions{EX: 30})
		Expect(err).NotTo(HaveOccurred())
		Expect(mr.Get("tok")).To(Equal("9"))
		Expect(mr.TTL("tok")).To(Equal(30 * time.Second))
	})
})
