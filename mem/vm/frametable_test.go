package vm_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/pagesim/mem/vm"
)

var _ = Describe("FrameTable", func() {
	var (
		mockCtrl     *gomock.Controller
		victimFinder *MockVictimFinder
		table        *vm.FrameTable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		victimFinder = NewMockVictimFinder(mockCtrl)
		table = vm.NewFrameTable(4, victimFinder)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start with every frame empty and free", func() {
		Expect(table.NumFrames()).To(Equal(4))
		Expect(table.NumFree()).To(Equal(4))
		Expect(table.Entries()).To(Equal(make([]vm.Entry, 4)))
		Expect(table.CheckConsistency()).To(Succeed())
	})

	It("should not find a page that is not resident", func() {
		_, found := table.Lookup(1, 2)
		Expect(found).To(BeFalse())

		_, found = table.ScanLookup(1, 2)
		Expect(found).To(BeFalse())
	})

	It("should allocate free frames in order", func() {
		for i := 0; i < 4; i++ {
			alloc := table.Allocate(1, uint64(10+i))

			Expect(alloc).To(Equal(vm.Allocation{Frame: i}))
		}

		Expect(table.NumFree()).To(Equal(0))
		Expect(table.Entry(2)).To(Equal(vm.Entry{
			PID: 1, Page: 12, Present: true,
		}))

		frame, found := table.Lookup(1, 12)
		Expect(found).To(BeTrue())
		Expect(frame).To(Equal(2))
		Expect(table.CheckConsistency()).To(Succeed())
	})

	It("should ask for a victim only when no frame is free", func() {
		for i := 0; i < 4; i++ {
			table.Allocate(0, uint64(i))
		}
		table.MarkAccessed(1, true)

		victimFinder.EXPECT().FindVictim().Return(1).Times(1)

		alloc := table.Allocate(1, 7)

		Expect(alloc).To(Equal(vm.Allocation{
			Frame:   1,
			Evicted: true,
			Victim:  vm.PageKey{PID: 0, Page: 1},
		}))
		Expect(table.Entry(1)).To(Equal(vm.Entry{
			PID: 1, Page: 7, Present: true,
		}))

		_, found := table.Lookup(0, 1)
		Expect(found).To(BeFalse())

		frame, found := table.Lookup(1, 7)
		Expect(found).To(BeTrue())
		Expect(frame).To(Equal(1))
		Expect(table.CheckConsistency()).To(Succeed())
	})

	It("should panic if the victim is not resident", func() {
		table = vm.NewFrameTable(1, victimFinder)
		table.Allocate(0, 0)

		victimFinder.EXPECT().FindVictim().Return(3)

		Expect(func() { table.Allocate(0, 1) }).To(Panic())
	})

	It("should panic when loading a page that is already resident", func() {
		table.Allocate(0, 0)

		Expect(func() { table.Allocate(0, 0) }).To(Panic())
	})

	It("should mark reads and writes", func() {
		table.Allocate(0, 0)
		table.Allocate(0, 1)

		table.MarkAccessed(0, false)
		table.MarkAccessed(1, true)

		Expect(table.Entry(0).Referenced).To(BeTrue())
		Expect(table.Entry(0).Modified).To(BeFalse())
		Expect(table.Entry(1).Referenced).To(BeTrue())
		Expect(table.Entry(1).Modified).To(BeTrue())

		table.ClearReferenced(1)

		Expect(table.IsReferenced(1)).To(BeFalse())
		Expect(table.Entry(1).Modified).To(BeTrue())
	})

	It("should agree with a linear scan after random allocations", func() {
		rng := rand.New(rand.NewSource(1))
		victimFinder.EXPECT().FindVictim().
			DoAndReturn(func() int { return rng.Intn(4) }).
			AnyTimes()

		for i := 0; i < 500; i++ {
			pid := vm.PID(rng.Intn(2))
			page := uint64(rng.Intn(6))

			if _, found := table.Lookup(pid, page); !found {
				table.Allocate(pid, page)
			}

			Expect(table.CheckConsistency()).To(Succeed())

			for f := 0; f < table.NumFrames(); f++ {
				e := table.Entry(f)
				if !e.Present {
					continue
				}

				indexed, found := table.Lookup(e.PID, e.Page)
				scanned, _ := table.ScanLookup(e.PID, e.Page)
				Expect(found).To(BeTrue())
				Expect(indexed).To(Equal(f))
				Expect(scanned).To(Equal(f))
			}
		}
	})

	Context("when the reverse lookup is corrupted", func() {
		BeforeEach(func() {
			table.Allocate(0, 0)
			table.Allocate(0, 1)
		})

		It("should report a resident page that is not indexed", func() {
			table.ForgetPage(vm.PageKey{PID: 0, Page: 1})

			Expect(table.CheckConsistency()).
				To(MatchError(vm.ErrInvariantViolation))
		})

		It("should report a page indexed to the wrong frame", func() {
			table.IndexPage(vm.PageKey{PID: 0, Page: 1}, 0)

			Expect(table.CheckConsistency()).
				To(MatchError(vm.ErrInvariantViolation))
		})

		It("should report an index entry without a resident page", func() {
			table.IndexPage(vm.PageKey{PID: 1, Page: 5}, 3)

			Expect(table.CheckConsistency()).
				To(MatchError(vm.ErrInvariantViolation))
		})
	})
})
