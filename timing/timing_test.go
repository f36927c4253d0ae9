package timing_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dbtvm/engine"
	"github.com/sarchlab/dbtvm/loader"
	"github.com/sarchlab/dbtvm/timing"
)

func TestTiming(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Timing Suite")
}

var _ = Describe("Model", func() {
	It("should estimate cycles for a mixed interpreted and native run", func() {
		model := timing.NewModel(nil, nil)

		prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
		e, err := engine.New(engine.WithBlockListener(model.Listener()))
		Expect(err).NotTo(HaveOccurred())
		Expect(e.LoadProgram(prog)).To(Succeed())

		result := e.Run(context.Background())
		Expect(result.Outcome).To(Equal(engine.OutcomeHalted))

		stats := model.Stats()

		// The seven-instruction loop body runs once interpreted and once
		// native; the two trailing one-instruction blocks run interpreted.
		Expect(stats.Blocks).To(Equal(uint64(4)))
		Expect(stats.InterpretedBlocks).To(Equal(uint64(3)))
		Expect(stats.NativeBlocks).To(Equal(uint64(1)))
		Expect(stats.Instructions).To(Equal(uint64(16)))

		// Interpreted loop body: 7 op cycles, 28 dispatch cycles, one cold
		// line miss (20) plus 6 line hits.
		// Native loop body: 2 entry cycles plus 7 op cycles.
		// Each trailing block: 1 op cycle, 4 dispatch cycles, 1 line hit.
		Expect(stats.Cycles).To(Equal(uint64(61 + 9 + 6 + 6)))

		Expect(stats.Fetch.Fetches).To(Equal(uint64(9)))
		Expect(stats.Fetch.Misses).To(Equal(uint64(1)))
		Expect(stats.Fetch.Hits).To(Equal(uint64(8)))
	})

	It("should charge native blocks no instruction fetches", func() {
		model := timing.NewModel(nil, nil)

		prog := loader.New([]byte{2, 2, 2, 2, 2, 2, 5, 5, 0}, 0, 2)
		e, err := engine.New(engine.WithBlockListener(model.Listener()))
		Expect(err).NotTo(HaveOccurred())
		Expect(e.LoadProgram(prog)).To(Succeed())
		Expect(e.Precompile(0)).To(Succeed())

		result := e.Run(context.Background())
		Expect(result.Outcome).To(Equal(engine.OutcomeHalted))

		stats := model.Stats()
		Expect(stats.NativeBlocks).To(Equal(uint64(2)))
		// Only the two trailing interpreted blocks touch the i-cache.
		Expect(stats.Fetch.Fetches).To(Equal(uint64(2)))
	})
})
