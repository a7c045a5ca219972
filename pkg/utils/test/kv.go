package testutils

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/kv"
)

// DriverSuite configures the shared kv.Driver behaviour specs.
type DriverSuite struct {
	// New returns a fresh, empty driver for each spec.
	New func() kv.Driver

	// Advance moves the driver's clock forward. Defaults to time.Sleep, for
	// backends that follow wall time.
	Advance func(d time.Duration)
}

// DescribeDriver registers specs every kv.Driver implementation must pass.
// Call it from inside a Describe of the driver's test package.
func DescribeDriver(suite DriverSuite) {
	var (
		driver kv.Driver
		ctx    context.Context
	)

	advance := suite.Advance
	if advance == nil {
		advance = time.Sleep
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = suite.New()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Get", func() {
		It("returns NotFoundError for a missing key", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(kv.ErrNotFound))

			var nf kv.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.Key).To(Equal("missing"))
		})

		It("returns what Set stored", func() {
			ok, err := driver.Set(ctx, "tok", "10", kv.SetOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			v, err := driver.Get(ctx, "tok")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("10"))
		})
	})

	Describe("Set", func() {
		It("overwrites existing values", func() {
			_, _ = driver.Set(ctx, "tok", "1", kv.SetOptions{})
			_, err := driver.Set(ctx, "tok", "2", kv.SetOptions{})
			Expect(err).NotTo(HaveOccurred())

			v, _ := driver.Get(ctx, "tok")
			Expect(v).To(Equal("2"))
		})

		It("skips NX writes on existing keys", func() {
			_, _ = driver.Set(ctx, "tok", "1", kv.SetOptions{})
			ok, err := driver.Set(ctx, "tok", "2", kv.SetOptions{NX: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			v, _ := driver.Get(ctx, "tok")
			Expect(v).To(Equal("1"))
		})

		It("performs NX writes on missing keys", func() {
			ok, err := driver.Set(ctx, "fresh", "5", kv.SetOptions{NX: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("skips XX writes on missing keys", func() {
			ok, err := driver.Set(ctx, "ghost", "5", kv.SetOptions{XX: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			_, err = driver.Get(ctx, "ghost")
			Expect(err).To(MatchError(kv.ErrNotFound))
		})

		It("rejects NX with XX", func() {
			_, err := driver.Set(ctx, "tok", "1", kv.SetOptions{NX: true, XX: true})
			Expect(err).To(MatchError(kv.ErrInvalidOptions))
		})

		It("expires keys written with PX", func() {
			_, err := driver.Set(ctx, "short", "3", kv.SetOptions{PX: 50})
			Expect(err).NotTo(HaveOccurred())

			v, err := driver.Get(ctx, "short")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("3"))

			advance(120 * time.Millisecond)

			_, err = driver.Get(ctx, "short")
			Expect(err).To(MatchError(kv.ErrNotFound))
		})

		It("treats expired keys as missing for NX", func() {
			_, _ = driver.Set(ctx, "short", "3", kv.SetOptions{PX: 50})
			advance(120 * time.Millisecond)

			ok, err := driver.Set(ctx, "short", "4", kv.SetOptions{NX: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Decr", func() {
		It("decrements an existing counter", func() {
			_, _ = driver.Set(ctx, "tok", "3", kv.SetOptions{})

			n, err := driver.Decr(ctx, "tok")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))

			v, _ := driver.Get(ctx, "tok")
			Expect(v).To(Equal("2"))
		})

		It("counts a missing key as zero", func() {
			n, err := driver.Decr(ctx, "new")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(-1)))
		})

		It("goes below zero", func() {
			_, _ = driver.Set(ctx, "tok", "0", kv.SetOptions{})
			n, err := driver.Decr(ctx, "tok")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(-1)))
		})

		It("fails on non-integer values", func() {
			_, _ = driver.Set(ctx, "word", "lots", kv.SetOptions{})
			_, err := driver.Decr(ctx, "word")
			Expect(err).To(MatchError(kv.ErrNotInteger))

			v, _ := driver.Get(ctx, "word")
			Expect(v).To(Equal("lots"))
		})

		It("keeps the expiry of the key", func() {
			_, _ = driver.Set(ctx, "short", "5", kv.SetOptions{PX: 50})
			_, err := driver.Decr(ctx, "short")
			Expect(err).NotTo(HaveOccurred())

			advance(120 * time.Millisecond)

			_, err = driver.Get(ctx, "short")
			Expect(err).To(MatchError(kv.ErrNotFound))
		})

		DescribeTable("loses no decrement under concurrency",
			func(seed string, start int64) {
				if seed != "" {
					_, _ = driver.Set(ctx, "shared", seed, kv.SetOptions{})
				}

				const callers = 16
				var (
					wg   sync.WaitGroup
					mu   sync.Mutex
					seen = map[int64]bool{}
				)
				for range callers {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						n, err := driver.Decr(ctx, "shared")
						Expect(err).NotTo(HaveOccurred())
						mu.Lock()
						seen[n] = true
						mu.Unlock()
					}()
				}
				wg.Wait()

				Expect(seen).To(HaveLen(callers))
				v, err := driver.Get(ctx, "shared")
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal(strconv.FormatInt(start-callers, 10)))
			},
			Entry("on a missing key", "", int64(0)),
			Entry("on an existing counter", "20", int64(20)),
		)
	})
}
