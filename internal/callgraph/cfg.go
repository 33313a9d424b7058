package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"armstack/internal/arm"
	"armstack/internal/disasm"
)

// FuncInfo holds the data needed to build the CFG of one function.
type FuncInfo struct {
	Name      string
	Insts     []disasm.Inst
	CallEdges []disasm.CallEdge
	Depths    map[uint64]int // stack depth at each analyzed instruction
}

// BuildCFG constructs a lattice.CFGGraph from disassembled functions.
// Each FuncInfo is converted to a lattice.FuncCFG via disasm.BuildCFG and
// then mapped to lattice types.
func BuildCFG(funcs []FuncInfo, p arm.Profile) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		dcfg := disasm.BuildCFG(f.Name, f.Insts, p)
		cg.Funcs = append(cg.Funcs, convertFuncCFG(&dcfg, f.CallEdges, f.Depths))
	}
	return cg
}

// BuildFuncCFG builds a single-function lattice.FuncCFG and reports the
// number of basic blocks so callers can skip trivial functions.
func BuildFuncCFG(f FuncInfo, p arm.Profile) (*lattice.FuncCFG, int) {
	dcfg := disasm.BuildCFG(f.Name, f.Insts, p)
	return convertFuncCFG(&dcfg, f.CallEdges, f.Depths), len(dcfg.Blocks)
}

// convertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG. Call edges are
// placed into blocks by matching instruction addresses. When depths is
// non-nil the stack depth at the call site is appended to the callee label.
func convertFuncCFG(dcfg *disasm.FuncCFG, edges []disasm.CallEdge, depths map[uint64]int) *lattice.FuncCFG {
	edgeByPC := make(map[uint64]disasm.CallEdge, len(edges))
	for _, e := range edges {
		edgeByPC[e.FromPC] = e
	}

	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}
		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			pc := dcfg.Insts[idx].Addr
			e, ok := edgeByPC[pc]
			if !ok {
				continue
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: idx,
				Callee: calleeLabel(e, depths, pc),
			})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

func calleeLabel(e disasm.CallEdge, depths map[uint64]int, pc uint64) string {
	callee := e.TargetName
	switch {
	case callee != "":
	case e.Reg != "":
		callee = "*" + e.Reg
	default:
		callee = fmt.Sprintf("0x%x", e.TargetPC)
	}
	if e.Kind == "tail" {
		callee += " (tail)"
	}
	if d, ok := depths[pc]; ok {
		callee = fmt.Sprintf("%s @%d", callee, d)
	}
	return callee
}
