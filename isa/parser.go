package isa

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser decodes assembly text lines into Instruction records.
type Parser struct{}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a single instruction line for the given core. The line
// must have its comment and surrounding whitespace already stripped by
// the caller if it came straight from a source file (the loader does
// this); Parse itself only strips an inline comment.
func (p *Parser) Parse(raw string, coreID int) (Instruction, error) {
	inst := New()
	inst.Raw = raw
	inst.CoreID = coreID

	line := stripComment(raw)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return inst, fmt.Errorf("isa: empty instruction line")
	}

	mnemonic := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), mnemonic))
	operands := parseOperands(rest)

	switch mnemonic {
	case "add", "sub", "slt", "mul":
		inst.IsArithmetic = true
		inst.Op = opFromMnemonic(mnemonic)
		if err := parseRType(&inst, operands); err != nil {
			return inst, err
		}
	case "addi":
		inst.IsArithmetic = true
		inst.Op = OpAddi
		if err := parseIType(&inst, operands); err != nil {
			return inst, err
		}
	case "lw", "lw_spm":
		inst.IsMemory = true
		inst.Op = OpLw
		if mnemonic == "lw_spm" {
			inst.IsSPM = true
			inst.Op = OpLwSPM
		}
		if err := parseLoad(&inst, operands); err != nil {
			return inst, err
		}
	case "sw", "sw_spm":
		inst.IsMemory = true
		inst.Op = OpSw
		if mnemonic == "sw_spm" {
			inst.IsSPM = true
			inst.Op = OpSwSPM
		}
		if err := parseStore(&inst, operands); err != nil {
			return inst, err
		}
	case "beq", "bne", "blt", "bge":
		inst.IsBranch = true
		inst.Op = opFromMnemonic(mnemonic)
		if err := parseBranch(&inst, operands); err != nil {
			return inst, err
		}
	case "j":
		inst.IsJump = true
		inst.Op = OpJ
		if err := parseJump(&inst, operands, false); err != nil {
			return inst, err
		}
	case "jal":
		inst.IsJump = true
		inst.Op = OpJal
		if err := parseJump(&inst, operands, true); err != nil {
			return inst, err
		}
	case "la":
		inst.Op = OpLa
		if err := parseLoadAddress(&inst, operands); err != nil {
			return inst, err
		}
	case "sync":
		inst.Op = OpSync
		inst.IsSync = true
		inst.ShouldExecute = true
	case "halt":
		inst.Op = OpHalt
		inst.IsHalt = true
	case "invld1":
		inst.Op = OpInvld1
		inst.IsInvldL1D = true
	default:
		return inst, fmt.Errorf("isa: unknown opcode %q in %q", mnemonic, raw)
	}

	return inst, nil
}

func opFromMnemonic(m string) Op {
	switch m {
	case "add":
		return OpAdd
	case "sub":
		return OpSub
	case "slt":
		return OpSlt
	case "mul":
		return OpMul
	case "beq":
		return OpBeq
	case "bne":
		return OpBne
	case "blt":
		return OpBlt
	case "bge":
		return OpBge
	default:
		return OpUnknown
	}
}

func parseRType(inst *Instruction, operands []string) error {
	if len(operands) < 3 {
		return fmt.Errorf("isa: %s requires 3 operands, got %d", inst.Op, len(operands))
	}
	rd, err := parseRegister(operands[0])
	if err != nil {
		return err
	}
	rs1, err := parseRegister(operands[1])
	if err != nil {
		return err
	}
	rs2, err := parseRegister(operands[2])
	if err != nil {
		return err
	}
	inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
	return nil
}

func parseIType(inst *Instruction, operands []string) error {
	if len(operands) < 3 {
		return fmt.Errorf("isa: addi requires 3 operands, got %d", len(operands))
	}
	rd, err := parseRegister(operands[0])
	if err != nil {
		return err
	}
	rs1, err := parseRegister(operands[1])
	if err != nil {
		return err
	}
	imm, err := strconv.Atoi(operands[2])
	if err != nil {
		return fmt.Errorf("isa: bad immediate %q: %w", operands[2], err)
	}
	inst.Rd, inst.Rs1, inst.Immediate = rd, rs1, int32(imm)
	return nil
}

func parseOffsetBase(operand string) (int32, int, error) {
	open := strings.IndexByte(operand, '(')
	close := strings.IndexByte(operand, ')')
	if open < 0 || close < 0 || close < open {
		return 0, NoReg, fmt.Errorf("isa: malformed offset(base) operand %q", operand)
	}
	offsetStr := operand[:open]
	baseStr := operand[open+1 : close]

	var offset int32
	if strings.TrimSpace(offsetStr) != "" {
		v, err := strconv.Atoi(strings.TrimSpace(offsetStr))
		if err != nil {
			return 0, NoReg, fmt.Errorf("isa: bad offset %q: %w", offsetStr, err)
		}
		offset = int32(v)
	}
	base, err := parseRegister(baseStr)
	if err != nil {
		return 0, NoReg, err
	}
	return offset, base, nil
}

func parseLoad(inst *Instruction, operands []string) error {
	if len(operands) < 2 {
		return fmt.Errorf("isa: load requires 2 operands, got %d", len(operands))
	}
	rd, err := parseRegister(operands[0])
	if err != nil {
		return err
	}
	offset, base, err := parseOffsetBase(operands[1])
	if err != nil {
		return err
	}
	inst.Rd, inst.Immediate, inst.Rs1 = rd, offset, base
	return nil
}

func parseStore(inst *Instruction, operands []string) error {
	if len(operands) < 2 {
		return fmt.Errorf("isa: store requires 2 operands, got %d", len(operands))
	}
	rs2, err := parseRegister(operands[0])
	if err != nil {
		return err
	}
	offset, base, err := parseOffsetBase(operands[1])
	if err != nil {
		return err
	}
	inst.Rs2, inst.Immediate, inst.Rs1 = rs2, offset, base
	return nil
}

func parseBranch(inst *Instruction, operands []string) error {
	if len(operands) < 3 {
		return fmt.Errorf("isa: branch requires 3 operands, got %d", len(operands))
	}
	rs1, err := parseRegister(operands[0])
	if err != nil {
		return err
	}
	inst.Rs1 = rs1

	if inst.Op == OpBeq && rs1 == 31 {
		id, err := strconv.Atoi(operands[1])
		if err != nil {
			return fmt.Errorf("isa: bad core id literal %q: %w", operands[1], err)
		}
		inst.UseCoreIDDispatch = true
		inst.Rs2 = id
	} else {
		rs2, err := parseRegister(operands[1])
		if err != nil {
			return err
		}
		inst.Rs2 = rs2
	}
	inst.Label = operands[2]
	inst.TargetPC = -1
	return nil
}

func parseJump(inst *Instruction, operands []string, link bool) error {
	if !link {
		if len(operands) != 1 {
			return fmt.Errorf("isa: j requires 1 operand, got %d", len(operands))
		}
		inst.Rd = NoReg
		inst.Label = trimLabelDot(operands[0])
		inst.TargetPC = -1
		return nil
	}
	if len(operands) < 2 {
		return fmt.Errorf("isa: jal requires 2 operands, got %d", len(operands))
	}
	rd, err := parseRegister(operands[0])
	if err != nil {
		return err
	}
	inst.Rd = rd
	inst.Label = trimLabelDot(operands[1])
	inst.TargetPC = -1
	return nil
}

func parseLoadAddress(inst *Instruction, operands []string) error {
	if len(operands) < 2 {
		return fmt.Errorf("isa: la requires 2 operands, got %d", len(operands))
	}
	rd, err := parseRegister(operands[0])
	if err != nil {
		return err
	}
	inst.Rd = rd
	inst.Label = trimLabelDot(operands[1])
	return nil
}

func trimLabelDot(label string) string {
	return strings.TrimPrefix(label, ".")
}

func parseRegister(reg string) (int, error) {
	reg = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(reg), ","))
	if len(reg) >= 2 && reg[0] == 'x' {
		n, err := strconv.Atoi(reg[1:])
		if err != nil {
			return NoReg, fmt.Errorf("isa: bad register %q: %w", reg, err)
		}
		return n, nil
	}
	return NoReg, fmt.Errorf("isa: expected register operand, got %q", reg)
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return line
}

func parseOperands(rest string) []string {
	rest = stripComment(rest)
	parts := strings.Split(rest, ",")
	operands := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			operands = append(operands, part)
		}
	}
	return operands
}
