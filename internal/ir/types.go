// Package ir is the intermediate representation for the ILOC optimizer: values,
// operations, instructions, basic blocks, procedures and the whole program,
// plus the SSA bookkeeping (SSAInfo) that later passes build on top of it.
//
// Every cross-reference between blocks, and between a use and its definition,
// is by stable string name rather than by pointer: a *BasicBlock is only ever
// a handle into its owning Procedure.Blocks map, never shared across
// procedures or serialized independently of it.
package ir

import "fmt"

// ValueType classifies what kind of operand text a Value holds.
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeVirtualReg
	TypeNumber
	TypeLabel
)

func (t ValueType) String() string {
	switch t {
	case TypeVirtualReg:
		return "virtualReg"
	case TypeNumber:
		return "number"
	case TypeLabel:
		return "label"
	default:
		return "unknown"
	}
}

// Behavior classifies how a register is produced, per the register-behavior
// inference: a memory-category definition taints every expression that
// reads it as "mixed" rather than pure "expression".
type Behavior int

const (
	BehaviorUnknown Behavior = iota
	BehaviorMemory
	BehaviorExpression
	BehaviorMixed
)

func (b Behavior) String() string {
	switch b {
	case BehaviorMemory:
		return "memory"
	case BehaviorExpression:
		return "expression"
	case BehaviorMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Value is an operand occurrence: a virtual register, a numeric literal, or
// a label. Two Values are Equal iff their (name, subscript) text and Type
// match; SameRegister compares name only, ignoring the SSA subscript — the
// name-only equivalence needed for pre-SSA live-variable analysis and for
// symbol tables keyed by "the register ignoring SSA version".
type Value struct {
	Name      string
	Subscript string // "" before SSA construction
	Type      ValueType
	Behavior  Behavior
}

// NewRegister builds a virtual-register Value with unknown behavior and no
// SSA subscript yet.
func NewRegister(name string) Value {
	return Value{Name: name, Type: TypeVirtualReg, Behavior: BehaviorUnknown}
}

// NewNumber builds a numeric-literal Value from its decimal text.
func NewNumber(text string) Value {
	return Value{Name: text, Type: TypeNumber, Behavior: BehaviorUnknown}
}

// NewLabel builds a label-operand Value (a branch target or frame name).
func NewLabel(name string) Value {
	return Value{Name: name, Type: TypeLabel, Behavior: BehaviorUnknown}
}

// Equal reports whether two Values denote the same SSA occurrence: same
// type and same (name, subscript) text.
func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && v.Name == o.Name && v.Subscript == o.Subscript
}

// SameRegister reports whether two Values name the same register ignoring
// SSA subscript — used by pre-SSA dataflow and by tables keyed on "the
// register regardless of version".
func (v Value) SameRegister(o Value) bool {
	return v.Type == o.Type && v.Name == o.Name
}

// FullText is the canonical textual rendering of the operand, including its
// SSA subscript when present (e.g. "%vr4_2"). Register names, live-range
// names, and interference-graph node names are all built from this.
func (v Value) FullText() string {
	if v.Subscript == "" {
		return v.Name
	}
	return v.Name + "_" + v.Subscript
}

func (v Value) String() string { return v.FullText() }

// IsVirtualReg reports whether this operand names a virtual register (as
// opposed to a literal number or a label).
func (v Value) IsVirtualReg() bool { return v.Type == TypeVirtualReg }

// Opcode enumerates every ILOC operation named at the CLI/interface level.
type Opcode int

const (
	OpUnknown Opcode = iota

	// integer arithmetic/logic
	OpAdd
	OpSub
	OpMult
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpNot
	OpLshift
	OpRshift
	OpAddI
	OpSubI
	OpMultI
	OpLshiftI
	OpRshiftI

	// float arithmetic
	OpFAdd
	OpFSub
	OpFMult
	OpFDiv

	// comparisons
	OpCmpLT
	OpCmpLE
	OpCmpGT
	OpCmpGE
	OpCmpEQ
	OpCmpNE
	OpComp
	OpFComp

	// test family
	OpTestEQ
	OpTestNE
	OpTestGT
	OpTestGE
	OpTestLT
	OpTestLE

	// conversions
	OpF2I
	OpI2F

	// moves
	OpI2I
	OpF2F

	// memory
	OpLoad
	OpLoadAI
	OpLoadAO
	OpStore
	OpStoreAI
	OpStoreAO
	OpFLoad
	OpFLoadAI
	OpFLoadAO
	OpFStore
	OpFStoreAI
	OpFStoreAO

	// load immediate
	OpLoadI

	// branches
	OpJumpI
	OpJump
	OpCbr
	OpCbrNE
	OpCbrLT
	OpCbrLE
	OpCbrGT
	OpCbrGE
	OpCbrEQ
	OpRet
	OpIRet
	OpFRet

	// I/O
	OpIRead
	OpFRead
	OpIWrite
	OpFWrite
	OpSWrite

	// calls
	OpCall
	OpICall
	OpFCall

	OpNop
)

// Category is the deterministic classification of an opcode.
type Category int

const (
	CatUnknown Category = iota
	CatExpression
	CatMemory
	CatLoadImmediate
	CatBranch
	CatIO
	CatTest
	CatNop
)

func (c Category) String() string {
	switch c {
	case CatExpression:
		return "expression"
	case CatMemory:
		return "memory"
	case CatLoadImmediate:
		return "loadimmediate"
	case CatBranch:
		return "branch"
	case CatIO:
		return "io"
	case CatTest:
		return "test"
	case CatNop:
		return "nop"
	default:
		return "unknown"
	}
}

var opcodeNames = map[Opcode]string{
	OpAdd: "add", OpSub: "sub", OpMult: "mult", OpDiv: "div", OpMod: "mod",
	OpAnd: "and", OpOr: "or", OpNot: "not", OpLshift: "lshift", OpRshift: "rshift",
	OpAddI: "addi", OpSubI: "subi", OpMultI: "multi", OpLshiftI: "lshifti", OpRshiftI: "rshifti",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMult: "fmult", OpFDiv: "fdiv",
	OpCmpLT: "cmp_lt", OpCmpLE: "cmp_le", OpCmpGT: "cmp_gt", OpCmpGE: "cmp_ge",
	OpCmpEQ: "cmp_eq", OpCmpNE: "cmp_ne", OpComp: "comp", OpFComp: "fcomp",
	OpTestEQ: "testeq", OpTestNE: "testne", OpTestGT: "testgt", OpTestGE: "testge",
	OpTestLT: "testlt", OpTestLE: "testle",
	OpF2I: "f2i", OpI2F: "i2f", OpI2I: "i2i", OpF2F: "f2f",
	OpLoad: "load", OpLoadAI: "loadai", OpLoadAO: "loadao",
	OpStore: "store", OpStoreAI: "storeai", OpStoreAO: "storeao",
	OpFLoad: "fload", OpFLoadAI: "floadai", OpFLoadAO: "floadao",
	OpFStore: "fstore", OpFStoreAI: "fstoreai", OpFStoreAO: "fstoreao",
	OpLoadI: "loadi",
	OpJumpI: "jumpi", OpJump: "jump",
	OpCbr: "cbr", OpCbrNE: "cbr_ne", OpCbrLT: "cbr_lt", OpCbrLE: "cbr_le",
	OpCbrGT: "cbr_gt", OpCbrGE: "cbr_ge", OpCbrEQ: "cbr_eq",
	OpRet: "ret", OpIRet: "iret", OpFRet: "fret",
	OpIRead: "iread", OpFRead: "fread", OpIWrite: "iwrite", OpFWrite: "fwrite", OpSWrite: "swrite",
	OpCall: "call", OpICall: "icall", OpFCall: "fcall",
	OpNop: "nop",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// LookupOpcode maps an ILOC mnemonic to its Opcode, or (OpUnknown, false) if
// the mnemonic is not recognized.
func LookupOpcode(mnemonic string) (Opcode, bool) {
	op, ok := opcodeByName[mnemonic]
	return op, ok
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", int(o))
}

var expressionOps = map[Opcode]bool{
	OpAdd: true, OpSub: true, OpMult: true, OpDiv: true, OpMod: true,
	OpAnd: true, OpOr: true, OpNot: true, OpLshift: true, OpRshift: true,
	OpAddI: true, OpSubI: true, OpMultI: true, OpLshiftI: true, OpRshiftI: true,
	OpFAdd: true, OpFSub: true, OpFMult: true, OpFDiv: true,
	OpCmpLT: true, OpCmpLE: true, OpCmpGT: true, OpCmpGE: true,
	OpCmpEQ: true, OpCmpNE: true, OpComp: true, OpFComp: true,
	OpF2I: true, OpI2F: true,
	OpCall: true, OpICall: true, OpFCall: true,
}

var memoryOps = map[Opcode]bool{
	OpI2I: true, OpF2F: true,
	OpLoad: true, OpLoadAI: true, OpLoadAO: true,
	OpStore: true, OpStoreAI: true, OpStoreAO: true,
	OpFLoad: true, OpFLoadAI: true, OpFLoadAO: true,
	OpFStore: true, OpFStoreAI: true, OpFStoreAO: true,
}

var loadImmediateOps = map[Opcode]bool{OpLoadI: true}

var branchOps = map[Opcode]bool{
	OpJumpI: true, OpJump: true,
	OpCbr: true, OpCbrNE: true, OpCbrLT: true, OpCbrLE: true,
	OpCbrGT: true, OpCbrGE: true, OpCbrEQ: true,
	OpRet: true, OpIRet: true, OpFRet: true,
}

var ioOps = map[Opcode]bool{
	OpFRead: true, OpIRead: true, OpFWrite: true, OpIWrite: true, OpSWrite: true,
}

var testOps = map[Opcode]bool{
	OpTestEQ: true, OpTestNE: true, OpTestGT: true, OpTestGE: true,
	OpTestLT: true, OpTestLE: true,
}

// storeOps are the opcodes whose syntactic lvalue operand is actually a
// memory address: their sole "destination" is folded into rvalues by
// NewOperation rather than left as an lvalue.
var storeOps = map[Opcode]bool{
	OpStore: true, OpStoreAI: true, OpStoreAO: true,
	OpFStore: true, OpFStoreAI: true, OpFStoreAO: true,
}

// sideEffectOps are opcodes DCE must never remove outright: stores, any load
// with an address computation, calls/returns, jumps, and I/O.
var sideEffectOps = map[Opcode]bool{
	OpCall: true, OpICall: true, OpFCall: true,
	OpRet: true, OpIRet: true, OpFRet: true,
	OpLoadAI: true, OpLoadAO: true,
	OpStore: true, OpStoreAI: true, OpStoreAO: true,
	OpFLoadAI: true, OpFLoadAO: true,
	OpFStore: true, OpFStoreAI: true, OpFStoreAO: true,
	OpJumpI: true, OpJump: true,
	OpFRead: true, OpIRead: true, OpFWrite: true, OpIWrite: true, OpSWrite: true,
}

// Categorize computes the deterministic category for an opcode.
func Categorize(op Opcode) (Category, bool) {
	switch {
	case expressionOps[op]:
		return CatExpression, true
	case memoryOps[op]:
		return CatMemory, true
	case loadImmediateOps[op]:
		return CatLoadImmediate, true
	case branchOps[op]:
		return CatBranch, true
	case ioOps[op]:
		return CatIO, true
	case testOps[op]:
		return CatTest, true
	case op == OpNop:
		return CatNop, true
	default:
		return CatUnknown, false
	}
}

// HasPossibleSideEffects reports whether an instruction with this opcode
// must never be deleted outright by DCE.
func HasPossibleSideEffects(op Opcode) bool { return sideEffectOps[op] }

// immediateForm maps an opcode to its immediate-operand counterpart, used by
// LVN when the right operand of a binary op is constant.
var immediateForm = map[Opcode]Opcode{
	OpAdd: OpAddI, OpSub: OpSubI, OpMult: OpMultI,
	OpLshift: OpLshiftI, OpRshift: OpRshiftI,
}

// ImmediateForm returns the immediate-operand opcode for op, if one exists.
func ImmediateForm(op Opcode) (Opcode, bool) {
	imm, ok := immediateForm[op]
	return imm, ok
}

// commutativeOps lists opcodes whose operand order may be swapped so a
// constant left operand becomes the right operand (enabling the immediate
// form rewrite above).
var commutativeOps = map[Opcode]bool{
	OpAdd: true, OpMult: true, OpAnd: true, OpOr: true,
	OpFAdd: true, OpFMult: true,
	OpCmpEQ: true, OpCmpNE: true,
}

// IsCommutative reports whether op's operands may be freely reordered.
func IsCommutative(op Opcode) bool { return commutativeOps[op] }

// ReadsExternalInput reports whether op reads external state each time it
// runs, and so must never be memoized in LVN's expression table.
func ReadsExternalInput(op Opcode) bool {
	return op == OpIRead || op == OpFRead
}

// Operation is opcode + category + ordered operand lists. Store-family
// opcodes fold their syntactic destination address into rvalues:
// NewOperation performs that rewrite once, at construction.
type Operation struct {
	Opcode   Opcode
	Category Category
	Arrow    string // "->" or "=>" as written in the source, preserved for emission
	RValues  []Value
	LValues  []Value
}

// NewOperation builds an Operation for opcode with the given raw operand
// lists, applying the store-family rvalue rewrite and category lookup.
// Returns an error if the opcode is not recognized by the categorizer.
func NewOperation(op Opcode, arrow string, rvalues, lvalues []Value) (Operation, error) {
	cat, ok := Categorize(op)
	if !ok {
		return Operation{}, fmt.Errorf("unsupported opcode %v", op)
	}
	o := Operation{Opcode: op, Category: cat, Arrow: arrow, RValues: append([]Value(nil), rvalues...), LValues: append([]Value(nil), lvalues...)}
	if storeOps[op] {
		o.RValues = append(o.RValues, o.LValues...)
		o.LValues = nil
	}
	return o, nil
}

// Instruction wraps an Operation with its optional block-entry label, the
// name of the block that contains it, and a logical-deletion flag.
type Instruction struct {
	Label               string // non-empty only on the first instruction of a block it names
	Operation           Operation
	ContainingBlockName string
	Deleted             bool
}

// IsDeleted reports whether this instruction has been logically removed;
// analyses and emitters must skip deleted instructions.
func (i *Instruction) IsDeleted() bool { return i.Deleted }

// MarkDeleted logically deletes the instruction in place.
func (i *Instruction) MarkDeleted() { i.Deleted = true }

// HasPossibleSideEffects reports whether this instruction's opcode is in the
// fixed side-effect set DCE must always keep necessary.
func (i *Instruction) HasPossibleSideEffects() bool {
	return HasPossibleSideEffects(i.Operation.Opcode)
}

// SingleLValue returns the instruction's sole lvalue and true, or the zero
// Value and false if it has zero or more than one lvalue.
func (i *Instruction) SingleLValue() (Value, bool) {
	if len(i.Operation.LValues) == 1 {
		return i.Operation.LValues[0], true
	}
	return Value{}, false
}

// ChangeToLoadImmediate rewrites this instruction in place to `loadi
// literal => lvalue`, keeping the original lvalue.
func (i *Instruction) ChangeToLoadImmediate(literal int64, lvalue Value) {
	i.Operation = Operation{
		Opcode:   OpLoadI,
		Category: CatLoadImmediate,
		Arrow:    "=>",
		RValues:  []Value{NewNumber(fmt.Sprintf("%d", literal))},
		LValues:  []Value{lvalue},
	}
}

// ChangeToMove rewrites this instruction in place to `i2i rvalue =>
// lvalue`, keeping the original lvalue.
func (i *Instruction) ChangeToMove(rvalue, lvalue Value) {
	i.Operation = Operation{
		Opcode:   OpI2I,
		Category: CatMemory,
		Arrow:    "=>",
		RValues:  []Value{rvalue},
		LValues:  []Value{lvalue},
	}
}

// PhiNode exists only in SSA form. Inputs maps each predecessor block name
// to the rvalue flowing in from that predecessor; after SSA construction it
// must have exactly one entry per predecessor of the owning block.
type PhiNode struct {
	LValue Value
	Inputs map[string]Value
	// InputOrder preserves the predecessor order the phi was created with,
	// so printing and iteration are deterministic.
	InputOrder []string
	Deleted    bool
}

// NewPhiNode creates an empty phi for lvalue over the given predecessor
// names, in order.
func NewPhiNode(lvalue Value, preds []string) *PhiNode {
	order := append([]string(nil), preds...)
	return &PhiNode{LValue: lvalue, Inputs: make(map[string]Value, len(preds)), InputOrder: order}
}

// SetInput records the rvalue flowing in from predecessor pred.
func (p *PhiNode) SetInput(pred string, v Value) {
	if !containsString(p.InputOrder, pred) {
		p.InputOrder = append(p.InputOrder, pred)
	}
	p.Inputs[pred] = v
}

// IsDeleted reports whether DCE has logically removed this phi.
func (p *PhiNode) IsDeleted() bool { return p.Deleted }

// MarkDeleted logically deletes the phi in place.
func (p *PhiNode) MarkDeleted() { p.Deleted = true }

// BasicBlock is a maximal straight-line instruction sequence. Successor/
// predecessor lists hold block names (never pointers), matching the rest of
// the IR's ownership discipline.
type BasicBlock struct {
	DebugName    string
	Order        int
	Instructions []*Instruction
	PhiNodes     []*PhiNode
	After        []string // successors, in operand order, fall-through last
	Before       []string // predecessors
}

// Terminator returns the block's last non-deleted instruction, or nil if
// the block has none (every reachable block's last instruction is normally
// a branch or return once parsing has completed).
func (b *BasicBlock) Terminator() *Instruction {
	for i := len(b.Instructions) - 1; i >= 0; i-- {
		if !b.Instructions[i].Deleted {
			return b.Instructions[i]
		}
	}
	return nil
}

// Frame holds a procedure's name, its spill-area size in bytes (grown
// monotonically by register allocation), and its ordered formal arguments.
type Frame struct {
	Name      string
	FrameSize int
	Arguments []Value
}

// Procedure is a frame plus its basic blocks, the name of its unique exit
// block, and a cached SSAInfo rebuilt by every transforming pass.
type Procedure struct {
	Frame         Frame
	Blocks        map[string]*BasicBlock
	BlockOrder    []string // stable traversal order, by Order ascending
	ExitBlockName string
	SSA           *SSAInfo
}

// Block looks up a block by name.
func (p *Procedure) Block(name string) (*BasicBlock, bool) {
	b, ok := p.Blocks[name]
	return b, ok
}

// EntryBlockName returns the name of the procedure's entry block: the
// first block in stable Order. A parsed procedure's entry block is not
// necessarily named "entry" (ILOC labels mark branch targets, not the
// block falling out of the frame header), so every consumer of "the entry
// block" goes through this rather than a literal string.
func (p *Procedure) EntryBlockName() string {
	if len(p.BlockOrder) == 0 {
		return ""
	}
	return p.BlockOrder[0]
}

// OrderedBlocks returns the procedure's blocks in stable Order.
func (p *Procedure) OrderedBlocks() []*BasicBlock {
	out := make([]*BasicBlock, 0, len(p.BlockOrder))
	for _, name := range p.BlockOrder {
		out = append(out, p.Blocks[name])
	}
	return out
}

// AllVariableNames returns the set of distinct virtual-register names (by
// SameRegister equivalence) defined anywhere in the procedure, in first-seen
// order — the seed set for SSA phi placement.
func (p *Procedure) AllVariableNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, b := range p.OrderedBlocks() {
		for _, inst := range b.Instructions {
			for _, lv := range inst.Operation.LValues {
				if lv.IsVirtualReg() && !seen[lv.Name] {
					seen[lv.Name] = true
					names = append(names, lv.Name)
				}
			}
		}
		for _, phi := range b.PhiNodes {
			if phi.LValue.IsVirtualReg() && !seen[phi.LValue.Name] {
				seen[phi.LValue.Name] = true
				names = append(names, phi.LValue.Name)
			}
		}
	}
	return names
}

// PseudoOp is a data/text directive passed through unchanged.
type PseudoOp struct {
	Text string
}

// Program is the ordered pseudo-ops plus ordered procedures that make up a
// whole translation unit.
type Program struct {
	PseudoOps  []PseudoOp
	Procedures []*Procedure
	IsSSA      bool
}

// Procedure looks up a procedure by frame name.
func (p *Program) Procedure(name string) (*Procedure, bool) {
	for _, proc := range p.Procedures {
		if proc.Frame.Name == name {
			return proc, true
		}
	}
	return nil, false
}

// SpecialRegisterCount is the number of pre-defined special registers
// (%vr0..%vr3) every procedure's rename bootstrap seeds before the walk.
const SpecialRegisterCount = 4

// SpecialRegisterName returns the canonical name of special register i
// (0-indexed, i < SpecialRegisterCount).
func SpecialRegisterName(i int) string { return fmt.Sprintf("%%vr%d", i) }
