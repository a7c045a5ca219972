package utils_test

import (
	"context"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/kv/bolt"
	"github.com/streamrelay/streamrelay/pkg/kv/inmemory"
	"github.com/streamrelay/streamrelay/pkg/kv/redis"
	"github.com/streamrelay/streamrelay/pkg/kv/sqlite"
	"github.com/streamrelay/streamrelay/pkg/kv/utils"
	"github.com/streamrelay/streamrelay/pkg/logger"
)

var _ = Describe("NewDriver", func() {
	ctx := context.Background()

	open := func(opts utils.Options) kv.Driver {
		opts.Logger = logger.Nop()
		d, err := utils.NewDriver(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(d.Close)
		return d
	}

	It("defaults to the in-memory driver", func() {
		Expect(open(utils.Options{})).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens bolt at the target path", func() {
		d := open(utils.Options{Provider: "bolt", Target: filepath.Join(GinkgoT().TempDir(), "kv.db")})
		Expect(d).To(BeAssignableToTypeOf(&bolt.Driver{}))
	})

	It("opens sqlite at the target path", func() {
		d := open(utils.Options{Provider: "SQLite", Target: ":memory:"})
		Expect(d).To(BeAssignableToTypeOf(&sqlite.Driver{}))
	})

	It("connects to redis", func() {
		mr := miniredis.RunT(GinkgoT())
		d := open(utils.Options{Provider: "redis", Target: mr.Addr()})
		Expect(d).To(BeAssignableToTypeOf(&redis.Driver{}))
	})

	It("requires a target for persistent providers", func() {
		_, err := utils.NewDriver(ctx, utils.Options{Provider: "postgres"})
		Expect(err).To(MatchError(ContainSubstring("requires a target")))
	})

	It("rejects unknown providers", func() {
		_, err := utils.NewDriver(ctx, utils.Options{Provider: "etcd", Target: "x"})
		Expect(err).To(MatchError(ContainSubstring("unknown kv provider")))
	})
})
