package bolt_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/kv/bolt"
	testutils "github.com/streamrelay/streamrelay/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(testutils.DriverSuite{
		New: func() kv.Driver {
			d, err := bolt.NewDriver(filepath.Join(GinkgoT().TempDir(), "quota.db"))
			Expect(err).NotTo(HaveOccurred())
			return d
		},
	})

	It("persists values across reopen", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "quota.db")

		d, err := bolt.NewDriver(path)
		Expect(err).NotTo(HaveOccurred())
		_, err = d.Set(ctx, "tok", "7", kv.SetOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Close()).To(Succeed())

		d, err = bolt.NewDriver(path)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		v, err := d.Get(ctx, "tok")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("7"))
	})
})
