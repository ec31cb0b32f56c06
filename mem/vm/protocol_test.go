package vm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pagesim/mem/vm"
)

var _ = Describe("Access", func() {
	It("should split the address into page and offset", func() {
		a := vm.Access{PID: 1, Command: vm.Write, VAddr: 0x1234}

		page, offset := a.Split(8)

		Expect(page).To(Equal(uint64(0x12)))
		Expect(offset).To(Equal(uint64(0x34)))
	})

	It("should parse commands", func() {
		c, err := vm.ParseCommand("w")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.IsWrite()).To(BeTrue())

		c, err = vm.ParseCommand("r")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(vm.Read))

		_, err = vm.ParseCommand("x")
		Expect(err).To(HaveOccurred())
	})

	It("should echo the access", func() {
		a := vm.Access{PID: 0, Command: vm.Read, VAddr: 4}

		Expect(a.String()).To(Equal(
			"Process: 0  Command: r  Virtual Memory Location: 4"))
	})
})
