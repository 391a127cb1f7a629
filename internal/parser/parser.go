// Package parser turns ILOC assembly text directly into an *ir.Program: a
// hand-rolled scanner plus a small recursive-descent grammar, with no
// intermediate AST — ILOC is already three-address code, so there is
// nothing a separate tree layer would buy beyond what the IR already holds.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"iloctool/internal/ir"
	"iloctool/internal/token"
)

// ParseError is a grammar-level error collected during parsing; like
// ScanError it does not abort parsing of the rest of the file.
type ParseError struct {
	Message  string
	Position token.Position
}

func (e ParseError) Error() string { return fmt.Sprintf("%s: %s", e.Position, e.Message) }

// ParseResult is everything ParseSource produces: the program (always
// non-nil; it holds whatever could be parsed when errors occurred) plus
// every scan and parse error collected along the way.
type ParseResult struct {
	Program     *ir.Program
	ScanErrors  []ScanError
	ParseErrors []ParseError
}

// OK reports whether parsing produced a usable program with no errors.
func (r *ParseResult) OK() bool {
	return r.Program != nil && len(r.ScanErrors) == 0 && len(r.ParseErrors) == 0
}

// ParseSource scans and parses an ILOC source file, returning the resulting
// program and any errors. Parsing continues past row-level recoverable
// errors rather than aborting at the first one, mirroring how the scanner
// continues past lexical errors.
func ParseSource(source string) *ParseResult {
	scanner := NewScanner(source)
	toks, scanErrs := scanner.ScanTokens()

	p := &parser{tokens: toks, source: source}
	program := p.parseProgram()

	return &ParseResult{Program: program, ScanErrors: scanErrs, ParseErrors: p.errors}
}

type parser struct {
	tokens  []token.Token
	source  string
	current int
	errors  []ParseError
}

// --- token-stream combinators, adapted from a hand-rolled recursive-
// descent helper style: peek/advance/check/match/consume/synchronize ---

func (p *parser) peek() token.Token    { return p.tokens[p.current] }
func (p *parser) previous() token.Token { return p.tokens[p.current-1] }
func (p *parser) isAtEnd() bool        { return p.peek().Kind == token.EOF }

func (p *parser) advance() token.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *parser) check(kind token.Kind) bool {
	if p.isAtEnd() {
		return kind == token.EOF
	}
	return p.peek().Kind == kind
}

func (p *parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *parser) consume(kind token.Kind, message string) (token.Token, bool) {
	if p.check(kind) {
		return p.advance(), true
	}
	p.errorAtCurrent(message)
	return token.Token{}, false
}

func (p *parser) errorAtCurrent(message string) {
	p.errors = append(p.errors, ParseError{Message: message, Position: p.peek().Position})
}

// skipComments consumes a run of comment tokens; skipBlankLines below also
// consumes newlines. Both are called only between lines, so a comment that
// follows an instruction's operands is reported as a parse error.
func (p *parser) skipComments() {
	for p.check(token.COMMENT) {
		p.advance()
	}
}

func (p *parser) skipBlankLines() {
	for {
		p.skipComments()
		if p.check(token.NEWLINE) {
			p.advance()
			continue
		}
		break
	}
}

// synchronize discards tokens through the next newline, for recovery after
// a malformed line.
func (p *parser) synchronize() {
	for !p.isAtEnd() && !p.check(token.NEWLINE) {
		p.advance()
	}
	if p.check(token.NEWLINE) {
		p.advance()
	}
}

// --- grammar ---

func (p *parser) parseProgram() *ir.Program {
	program := ir.NewProgram()
	p.skipBlankLines()
	for !p.isAtEnd() {
		if p.check(token.DOT) {
			if p.isFrameDirective() {
				proc := p.parseProcedure()
				if proc != nil {
					program.AddProcedure(proc)
				}
			} else {
				program.PseudoOps = append(program.PseudoOps, p.parsePseudoOp())
			}
		} else {
			p.errorAtCurrent(fmt.Sprintf("expected '.frame' or a pseudo-op, found %q", p.peek().Lexeme))
			p.synchronize()
		}
		p.skipBlankLines()
	}
	return program
}

// isFrameDirective looks ahead past the leading '.' to see whether this
// directive line is ".frame" without consuming any tokens.
func (p *parser) isFrameDirective() bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	next := p.tokens[p.current+1]
	return next.Kind == token.IDENT && next.Lexeme == "frame"
}

// parsePseudoOp captures the raw source text of a non-frame directive line
// unchanged, since pseudo-ops are opaque data/text directives this module
// never interprets.
func (p *parser) parsePseudoOp() ir.PseudoOp {
	startOffset := p.peek().Position.Offset
	for !p.isAtEnd() && !p.check(token.NEWLINE) {
		p.advance()
	}
	endOffset := startOffset
	if p.current > 0 {
		last := p.previous()
		endOffset = last.Position.Offset + len(last.Lexeme)
	}
	if p.check(token.NEWLINE) {
		p.advance()
	}
	text := strings.TrimRight(p.source[startOffset:endOffset], " \t\r")
	return ir.PseudoOp{Text: text}
}

// parseProcedure parses `.frame NAME, SIZE, arg*` through a matching `.end`.
func (p *parser) parseProcedure() *ir.Procedure {
	p.advance() // '.'
	p.advance() // 'frame'

	nameTok, ok := p.consume(token.IDENT, "expected frame name after '.frame'")
	if !ok {
		p.synchronize()
		return nil
	}

	frame := ir.Frame{Name: nameTok.Lexeme}

	if p.match(token.COMMA) {
		sizeTok, ok := p.consume(token.NUMBER, "expected frame size")
		if ok {
			if n, err := strconv.Atoi(sizeTok.Lexeme); err == nil {
				frame.FrameSize = n
			}
		}
	}
	for p.match(token.COMMA) {
		argTok, ok := p.operandToken()
		if !ok {
			break
		}
		frame.Arguments = append(frame.Arguments, p.tokenToValue(argTok))
	}

	if !p.check(token.NEWLINE) && !p.isAtEnd() {
		p.errorAtCurrent("expected newline after frame header")
	}
	p.skipBlankLines()

	proc := ir.NewProcedure(frame)
	p.parseProcedureBody(proc)
	p.linkBlocks(proc)
	return proc
}

// parseProcedureBody parses instruction lines up to the matching `.end`,
// splitting them into basic blocks at labels and after branch/return
// instructions.
func (p *parser) parseProcedureBody(proc *ir.Procedure) {
	current := ir.NewBasicBlock(p.freshBlockName(proc, ""))
	proc.AddBlock(current)

	for !p.isAtEnd() {
		if p.check(token.DOT) {
			next := p.tokens[p.current+1]
			if next.Kind == token.IDENT && next.Lexeme == "end" {
				p.advance()
				p.advance()
				break
			}
		}

		inst, label, ok := p.parseInstructionLine()
		if !ok {
			p.synchronize()
			p.skipBlankLines()
			continue
		}

		if label != "" {
			if len(current.Instructions) == 0 {
				// Rename the still-empty block this label opens rather
				// than leaving a dangling unlabeled predecessor.
				delete(proc.Blocks, current.DebugName)
				current.DebugName = label
				proc.Blocks[label] = current
				proc.BlockOrder[len(proc.BlockOrder)-1] = label
			} else {
				current = ir.NewBasicBlock(label)
				proc.AddBlock(current)
			}
		}

		current.AddInstruction(inst)

		if isBlockEnder(inst.Operation.Opcode) {
			current = ir.NewBasicBlock(p.freshBlockName(proc, ""))
			proc.AddBlock(current)
		}

		p.skipBlankLines()
	}

	if len(current.Instructions) == 0 && len(proc.BlockOrder) > 1 {
		// Drop a trailing empty block synthesized after the procedure's
		// final branch/return, unless it is the procedure's only block.
		last := proc.BlockOrder[len(proc.BlockOrder)-1]
		delete(proc.Blocks, last)
		proc.BlockOrder = proc.BlockOrder[:len(proc.BlockOrder)-1]
	}

	if len(proc.BlockOrder) > 0 {
		proc.ExitBlockName = proc.BlockOrder[len(proc.BlockOrder)-1]
	}
}

func isBlockEnder(op ir.Opcode) bool {
	switch op {
	case ir.OpJumpI, ir.OpJump, ir.OpCbr, ir.OpCbrNE, ir.OpCbrLT, ir.OpCbrLE, ir.OpCbrGT, ir.OpCbrGE, ir.OpCbrEQ,
		ir.OpRet, ir.OpIRet, ir.OpFRet:
		return true
	default:
		return false
	}
}

func (p *parser) freshBlockName(proc *ir.Procedure, prefix string) string {
	if prefix == "" {
		prefix = fmt.Sprintf("%s.L%d", proc.Frame.Name, len(proc.BlockOrder))
	}
	for {
		if _, exists := proc.Blocks[prefix]; !exists {
			return prefix
		}
		prefix += "'"
	}
}

// parseInstructionLine parses `[label:] opcode operand(,operand)* [arrow
// operand(,operand)*]`.
func (p *parser) parseInstructionLine() (*ir.Instruction, string, bool) {
	label := ""
	if p.check(token.LABEL) {
		tok := p.advance()
		label = strings.TrimSuffix(tok.Lexeme, ":")
	}

	opTok, ok := p.consume(token.IDENT, "expected opcode")
	if !ok {
		return nil, label, false
	}
	opcode, known := ir.LookupOpcode(opTok.Lexeme)
	if !known {
		p.errors = append(p.errors, ParseError{
			Message:  fmt.Sprintf("unrecognized opcode %q", opTok.Lexeme),
			Position: opTok.Position,
		})
		return nil, label, false
	}

	first, arrow := p.parseOperandList()
	var second []ir.Value
	if arrow != "" {
		second, _ = p.parseOperandList()
	}

	if !p.check(token.NEWLINE) && !p.isAtEnd() {
		p.errorAtCurrent("expected newline after instruction")
	}

	var rvalues, lvalues []ir.Value
	if arrow != "" {
		rvalues, lvalues = first, second
	} else {
		rvalues = first
	}

	op, err := ir.NewOperation(opcode, arrow, rvalues, lvalues)
	if err != nil {
		p.errors = append(p.errors, ParseError{Message: err.Error(), Position: opTok.Position})
		return nil, label, false
	}

	inst := &ir.Instruction{Label: label, Operation: op}
	return inst, label, true
}

// parseOperandList parses a comma-separated operand list and reports the
// arrow spelling that terminated it, or "" if none was found (end of line).
func (p *parser) parseOperandList() ([]ir.Value, string) {
	var values []ir.Value
	if tok, ok := p.operandToken(); ok {
		values = append(values, p.tokenToValue(tok))
	} else {
		return values, p.consumeArrow()
	}
	for p.match(token.COMMA) {
		tok, ok := p.operandToken()
		if !ok {
			break
		}
		values = append(values, p.tokenToValue(tok))
	}
	return values, p.consumeArrow()
}

func (p *parser) consumeArrow() string {
	if p.check(token.ARROW_THIN) {
		p.advance()
		return "->"
	}
	if p.check(token.ARROW_FAT) {
		p.advance()
		return "=>"
	}
	return ""
}

// operandToken consumes and returns the next operand-shaped token (a
// virtual register, a number, or a bare identifier used as a label), or
// false if the current token is not operand-shaped.
func (p *parser) operandToken() (token.Token, bool) {
	switch p.peek().Kind {
	case token.VREG, token.NUMBER, token.IDENT:
		return p.advance(), true
	default:
		return token.Token{}, false
	}
}

func (p *parser) tokenToValue(tok token.Token) ir.Value {
	switch tok.Kind {
	case token.VREG:
		return ir.NewRegister(tok.Lexeme)
	case token.NUMBER:
		return ir.NewNumber(tok.Lexeme)
	default:
		return ir.NewLabel(tok.Lexeme)
	}
}

// linkBlocks computes each block's After/Before adjacency from its
// terminator, establishing the implicit fall-through edge for every
// non-branch-terminated block and for a conditional branch naming fewer
// than two label targets.
func (p *parser) linkBlocks(proc *ir.Procedure) {
	blocks := proc.OrderedBlocks()
	for i, b := range blocks {
		term := b.Terminator()
		if term == nil {
			if i+1 < len(blocks) {
				ir.AddSuccessor(b, blocks[i+1])
			}
			continue
		}
		switch term.Operation.Opcode {
		case ir.OpJumpI:
			if target, ok := labelTarget(term.Operation.LValues); ok {
				if tb, exists := proc.Block(target); exists {
					ir.AddSuccessor(b, tb)
				}
			}
		case ir.OpJump:
			// register-indirect jump: target unknown statically, no edge added.
		case ir.OpCbr, ir.OpCbrNE, ir.OpCbrLT, ir.OpCbrLE, ir.OpCbrGT, ir.OpCbrGE, ir.OpCbrEQ:
			targets := labelOperands(term.Operation.LValues)
			for _, t := range targets {
				if tb, exists := proc.Block(t); exists {
					ir.AddSuccessor(b, tb)
				}
			}
			if len(targets) < 2 && i+1 < len(blocks) {
				ir.AddSuccessor(b, blocks[i+1])
			}
		case ir.OpRet, ir.OpIRet, ir.OpFRet:
			// procedure exit: no intra-procedure successor.
		default:
			if i+1 < len(blocks) {
				ir.AddSuccessor(b, blocks[i+1])
			}
		}
	}
}

func labelTarget(rvalues []ir.Value) (string, bool) {
	for _, v := range rvalues {
		if v.Type == ir.TypeLabel {
			return v.Name, true
		}
	}
	return "", false
}

func labelOperands(rvalues []ir.Value) []string {
	var out []string
	for _, v := range rvalues {
		if v.Type == ir.TypeLabel {
			out = append(out, v.Name)
		}
	}
	return out
}
