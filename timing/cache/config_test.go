package cache_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/sarchlab/rv32sim/timing/cache"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("should load YAML", func() {
		path := write("cache.yaml", "block_bits: 6\nset_bits: 3\nlines_per_set: 8\npolicy: LFU\n")

		config, err := cache.LoadConfig(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(config).To(Equal(cache.Config{
			BlockBits:   6,
			SetBits:     3,
			LinesPerSet: 8,
			Policy:      cache.PolicyLFU,
		}))
	})

	It("should load JSON and keep defaults for missing fields", func() {
		path := write("cache.json", `{"set_bits": 1}`)

		config, err := cache.LoadConfig(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(config.SetBits).To(Equal(uint(1)))
		Expect(config.BlockBits).To(Equal(cache.DefaultConfig().BlockBits))
		Expect(config.Policy).To(Equal(cache.PolicyLRU))
	})

	It("should reject unknown policies", func() {
		path := write("cache.yml", "policy: fifo\n")

		_, err := cache.LoadConfig(path)

		Expect(errors.Cause(err)).To(Equal(cache.ErrInvalidConfig))
	})

	It("should reject zero associativity", func() {
		_, err := cache.New(cache.Config{BlockBits: 4, LinesPerSet: 0})

		Expect(errors.Cause(err)).To(Equal(cache.ErrInvalidConfig))
	})

	DescribeTable("should round-trip through SaveConfig",
		func(name string) {
			path := filepath.Join(dir, name)
			original := cache.Config{
				BlockBits:   5,
				SetBits:     2,
				LinesPerSet: 3,
				Policy:      cache.PolicyLFU,
			}

			Expect(cache.SaveConfig(path, original)).To(Succeed())
			loaded, err := cache.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		},
		Entry("yaml", "saved.yaml"),
		Entry("json", "saved.json"),
	)
})
