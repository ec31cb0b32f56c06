package simulator

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/pagesim/hooking"
	"github.com/sarchlab/pagesim/mem/vm"
)

func read(pid vm.PID, vAddr uint64) vm.Access {
	return vm.Access{PID: pid, Command: vm.Read, VAddr: vAddr}
}

func write(pid vm.PID, vAddr uint64) vm.Access {
	return vm.Access{PID: pid, Command: vm.Write, VAddr: vAddr}
}

var _ = Describe("Simulator", func() {
	var (
		mockCtrl *gomock.Controller
		s        *Simulator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		var err error
		s, err = MakeBuilder().
			WithConfig(Config{
				VirtualAddressBits:  4,
				PhysicalAddressBits: 3,
				OffsetBits:          2,
				NumProcesses:        2,
			}).
			Build("Sim")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should refuse to build with a bad configuration", func() {
		_, err := MakeBuilder().
			WithConfig(Config{
				VirtualAddressBits:  4,
				PhysicalAddressBits: 3,
				OffsetBits:          2,
				NumProcesses:        3,
			}).
			Build("Sim")

		Expect(err).To(MatchError(ErrMalformedInput))
	})

	It("should start with an empty table", func() {
		snapshot := s.InitialSnapshot()

		Expect(snapshot.IsInitial()).To(BeTrue())
		Expect(snapshot.Frames).To(Equal([]FrameState{
			{Frame: 0}, {Frame: 1},
		}))
	})

	It("should evict the frame with the oldest history", func() {
		first := s.Step(read(0, 0))

		Expect(first.Fault).To(BeTrue())
		Expect(first.Page).To(Equal(uint64(0)))
		Expect(first.Allocation).To(Equal(vm.Allocation{Frame: 0}))
		Expect(first.Frames[0]).To(Equal(FrameState{
			Frame: 0,
			Entry: vm.Entry{PID: 0, Page: 0, Present: true},
			PTE:   vm.PTE(1 << 3),
			Aging: 0xFF,
		}))

		second := s.Step(write(0, 4))

		Expect(second.Fault).To(BeTrue())
		Expect(second.Page).To(Equal(uint64(1)))
		Expect(second.Offset).To(Equal(uint64(0)))
		Expect(second.Allocation).To(Equal(vm.Allocation{Frame: 1}))
		Expect(second.Frames[0].Aging).To(Equal(uint8(0x7F)))
		Expect(second.Frames[1]).To(Equal(FrameState{
			Frame: 1,
			Entry: vm.Entry{PID: 0, Page: 1, Present: true, Modified: true},
			PTE:   vm.PTE(1 | 1<<3 | 1<<5),
			Aging: 0xFF,
		}))

		third := s.Step(read(1, 0))

		Expect(third.Fault).To(BeTrue())
		Expect(third.Allocation).To(Equal(vm.Allocation{
			Frame:   0,
			Evicted: true,
			Victim:  vm.PageKey{PID: 0, Page: 0},
		}))
		Expect(third.Frames[0].Entry).To(Equal(vm.Entry{
			PID: 1, Page: 0, Present: true,
		}))
		Expect(third.Frames[0].Aging).To(Equal(uint8(0xFF)))
		Expect(third.Frames[1].Aging).To(Equal(uint8(0x7F)))

		_, found := s.FrameTable().Lookup(0, 0)
		Expect(found).To(BeFalse())

		frame, found := s.FrameTable().Lookup(1, 0)
		Expect(found).To(BeTrue())
		Expect(frame).To(Equal(0))
		Expect(s.FrameTable().CheckConsistency()).To(Succeed())

		Expect(s.Stats()).To(Equal(Stats{
			Accesses: 3, Faults: 3, Evictions: 1,
		}))
	})

	It("should hit a resident page without allocating", func() {
		s.Step(read(0, 1))
		snapshot := s.Step(write(0, 3))

		Expect(snapshot.Fault).To(BeFalse())
		Expect(snapshot.Offset).To(Equal(uint64(3)))
		Expect(snapshot.Allocation).To(Equal(vm.Allocation{Frame: 0}))
		Expect(snapshot.Frames[0].Entry.Modified).To(BeTrue())
		Expect(snapshot.Frames[0].Aging).To(Equal(uint8(0xFF)))
		Expect(s.FrameTable().NumFree()).To(Equal(1))
		Expect(s.Stats().Hits).To(Equal(uint64(1)))
		Expect(s.Stats().HitRatio()).To(Equal(0.5))
	})

	It("should clear the referenced bit of a just loaded page", func() {
		snapshot := s.Step(read(0, 0))

		Expect(snapshot.Frames[0].Entry.Referenced).To(BeFalse())
		Expect(snapshot.Frames[0].Aging).To(Equal(uint8(0xFF)))
	})

	It("should fill the free frames before evicting", func() {
		s.Step(read(0, 0))
		s.Step(read(0, 4))
		Expect(s.FrameTable().NumFree()).To(Equal(0))
		Expect(s.Stats().Evictions).To(BeZero())

		snapshot := s.Step(read(0, 8))
		Expect(snapshot.Allocation.Evicted).To(BeTrue())
		Expect(s.Stats().Evictions).To(Equal(uint64(1)))
	})

	It("should keep a busy page over an idle one", func() {
		s.Step(read(0, 0))
		s.Step(read(1, 0))

		for i := 0; i < 8; i++ {
			s.Step(read(1, 1))
		}

		Expect(s.Aging().Counter(0)).To(BeZero())
		Expect(s.Aging().Counter(1)).To(Equal(uint8(0xFF)))

		snapshot := s.Step(read(0, 12))
		Expect(snapshot.Allocation.Victim).To(Equal(vm.PageKey{PID: 0, Page: 0}))
	})

	It("should pack the page number as wide as the page offset", func() {
		wide, err := MakeBuilder().
			WithConfig(Config{
				VirtualAddressBits:  8,
				PhysicalAddressBits: 4,
				OffsetBits:          2,
				NumProcesses:        2,
			}).
			Build("Wide")
		Expect(err).NotTo(HaveOccurred())

		first := wide.Step(read(1, 4))
		Expect(first.Frames[0].Entry).To(Equal(vm.Entry{
			PID: 1, Page: 1, Present: true,
		}))
		Expect(first.Frames[0].PTE).To(Equal(vm.PTE(0b1101)))

		second := wide.Step(write(0, 20))
		Expect(second.Page).To(Equal(uint64(5)))
		Expect(second.Frames[1].Entry).To(Equal(vm.Entry{
			PID: 0, Page: 5, Present: true, Modified: true,
		}))
		Expect(second.Frames[1].PTE).To(Equal(vm.PTE(0b101001)))

		frame, found := wide.FrameTable().Lookup(0, 5)
		Expect(found).To(BeTrue())
		Expect(frame).To(Equal(1))
	})

	It("should keep the lookup consistent with the frames", func() {
		rng := rand.New(rand.NewSource(42))

		for i := 0; i < 1000; i++ {
			a := vm.Access{
				PID:   vm.PID(rng.Intn(2)),
				VAddr: uint64(rng.Intn(16)),
			}
			if rng.Intn(2) == 0 {
				a.Command = vm.Read
			} else {
				a.Command = vm.Write
			}

			s.Step(a)

			Expect(s.FrameTable().CheckConsistency()).To(Succeed())
		}

		stats := s.Stats()
		Expect(stats.Hits + stats.Faults).To(Equal(stats.Accesses))
		Expect(stats.Faults - stats.Evictions).To(Equal(uint64(2)))
	})

	It("should report to hooks", func() {
		hook := NewMockHook(mockCtrl)
		s.AcceptHook(hook)

		var positions []*hooking.HookPos
		hook.EXPECT().Func(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Domain).To(BeIdenticalTo(s))
				positions = append(positions, ctx.Pos)
			}).
			Times(4)

		s.InitialSnapshot()
		snapshots := s.Run([]vm.Access{read(0, 0), write(1, 15)})

		Expect(snapshots).To(HaveLen(2))
		Expect(snapshots[1].Step).To(Equal(2))
		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosInit, HookPosStep, HookPosStep, HookPosRunEnd,
		}))
	})
})
