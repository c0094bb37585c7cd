package loader_test

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/riscvmc/loader"
)

func TestLoader(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Loader Suite")
}

var _ = Describe("Parse", func() {
	It("collects .text instructions in order, stripping comments", func() {
		src := ".text\naddi x1,x0,5 # load 5\nadd x2,x1,x1\nhalt\n"
		prog, err := loader.Parse(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Instructions).To(Equal([]string{
			"addi x1,x0,5",
			"add x2,x1,x1",
			"halt",
		}))
	})

	It("resolves a standalone label line to the next instruction's index", func() {
		src := ".text\naddi x1,x0,1\nbne x1,x0,L\naddi x2,x0,99\nL:\naddi x2,x0,7\nhalt\n"
		prog, err := loader.Parse(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.TextLabels["L"]).To(Equal(3))
		Expect(prog.Instructions[3]).To(Equal("addi x2,x0,7"))
	})

	It("resolves an inline label:instruction line to that instruction's own index", func() {
		src := ".text\naddi x1,x0,1\nbne x1,x0,L\naddi x2,x0,99\nL: addi x2,x0,7\nhalt\n"
		prog, err := loader.Parse(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.TextLabels["L"]).To(Equal(3))
		Expect(prog.Instructions[3]).To(Equal("addi x2,x0,7"))
	})

	It("ignores .globl directives", func() {
		src := ".globl main\n.text\nhalt\n"
		prog, err := loader.Parse(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Instructions).To(Equal([]string{"halt"}))
	})

	It("lays down .word values sequentially and records the label's byte address", func() {
		src := ".data\nfirst: .word 1, 2, 3\nsecond: .word 42\n.text\nhalt\n"
		prog, err := loader.Parse(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.DataWords).To(Equal([]int32{1, 2, 3, 42}))
		Expect(prog.DataLabels["first"]).To(Equal(uint64(0)))
		Expect(prog.DataLabels["second"]).To(Equal(uint64(12)))
	})

	It("supports a standalone data label followed by .word on the next line", func() {
		src := ".data\nbuf:\n.word 10, 20\n.text\nhalt\n"
		prog, err := loader.Parse(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.DataLabels["buf"]).To(Equal(uint64(0)))
		Expect(prog.DataWords).To(Equal([]int32{10, 20}))
	})

	It("errors on an instruction appearing before any section directive", func() {
		_, err := loader.Parse(strings.NewReader("halt\n"))
		Expect(err).To(HaveOccurred())
	})

	It("errors on an unrecognized data directive", func() {
		_, err := loader.Parse(strings.NewReader(".data\nnot a directive\n.text\nhalt\n"))
		Expect(err).To(HaveOccurred())
	})
})

type fakeMemory struct {
	words map[uint64]int32
}

func (f *fakeMemory) SetWord(addr uint64, value int32) error {
	f.words[addr] = value
	return nil
}

var _ = Describe("Program.InstallData", func() {
	It("writes every data word at its sequential address", func() {
		prog := &loader.Program{DataWords: []int32{7, 8, 9}}
		mem := &fakeMemory{words: make(map[uint64]int32)}

		Expect(prog.InstallData(mem)).To(Succeed())
		Expect(mem.words[0]).To(Equal(int32(7)))
		Expect(mem.words[4]).To(Equal(int32(8)))
		Expect(mem.words[8]).To(Equal(int32(9)))
	})
})
