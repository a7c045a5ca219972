package kvstore_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/kv/inmemory"
	"github.com/streamrelay/streamrelay/pkg/logger"
	"github.com/streamrelay/streamrelay/pkg/quota"
	"github.com/streamrelay/streamrelay/pkg/quota/kvstore"
)

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		store  *kvstore.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		store = kvstore.New(driver)
	})

	It("maps a missing key to ErrNoRecord", func() {
		_, err := store.Get(ctx, "nobody")
		Expect(err).To(MatchError(quota.ErrNoRecord))
	})

	It("round-trips counters", func() {
		Expect(store.Set(ctx, "tok", 3, quota.SetOptions{})).To(Succeed())
		rec, err := store.Get(ctx, "tok")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Remaining).To(Equal(int64(3)))

		rec, err = store.Decrement(ctx, "tok")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Remaining).To(Equal(int64(2)))
	})

	It("rejects values that are not counters", func() {
		_, err := driver.Set(ctx, "tok", "plenty", kv.SetOptions{})
		Expect(err).NotTo(HaveOccurred())

		_, err = store.Get(ctx, "tok")
		Expect(err).To(MatchError(quota.ErrMalformed))

		_, err = store.Decrement(ctx, "tok")
		Expect(err).To(MatchError(kv.ErrNotInteger))
	})

	It("backs a gateway end to end", func() {
		Expect(store.Set(ctx, "tok", 1, quota.SetOptions{})).To(Succeed())
		gw := quota.NewGateway(store, logger.Nop())

		Expect(gw.Authorize(ctx, "tok")).To(Succeed())
		_, err := gw.Consume(ctx, "tok")
		Expect(err).NotTo(HaveOccurred())
		Expect(gw.Authorize(ctx, "tok")).To(MatchError(quota.ErrDenied))
	})
})
