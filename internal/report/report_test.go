package report

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"armstack/internal/arm"
	"armstack/internal/disasm"
	"armstack/internal/stack"
	"armstack/internal/symtab"
)

// fakeAnalyzer returns canned usages and records which functions it saw.
type fakeAnalyzer struct {
	mu     sync.Mutex
	usages map[uint64]stack.Usage
	seen   []uint64
}

func (f *fakeAnalyzer) Analyze(fn stack.Function) stack.Usage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, fn.Addr)
	return f.usages[fn.Addr]
}

func testTable() *symtab.Table {
	return symtab.New([]disasm.Func{
		{Name: "main", Addr: 0x100, Size: 0x20},
		{Name: "a", Addr: 0x200, Size: 0x10},
		{Name: "b", Addr: 0x300, Size: 0x10},
		{Name: "leaf", Addr: 0x400, Size: 0x10},
		{Name: "even", Addr: 0x500, Size: 0x10},
		{Name: "odd", Addr: 0x600, Size: 0x10},
		{Name: "abort", Addr: 0x700, Size: 4},
	})
}

func testUsages() map[uint64]stack.Usage {
	return map[uint64]stack.Usage{
		0x100: {MaxDepth: 16, Calls: []stack.Call{
			{Site: 0x104, Target: 0x200, Depth: 16},
			{Site: 0x108, Target: 0x300, Depth: 8},
		}},
		0x200: {MaxDepth: 8, Calls: []stack.Call{{Site: 0x204, Target: 0x400, Depth: 8}}},
		0x300: {MaxDepth: 64, Calls: []stack.Call{{Site: 0x30c, Target: 0x400, Tail: true}}},
		0x400: {MaxDepth: 24},
		0x500: {MaxDepth: 8, Calls: []stack.Call{{Site: 0x504, Target: 0x600, Depth: 8}}},
		0x600: {MaxDepth: 4, Calls: []stack.Call{
			{Site: 0x604, Target: 0x500, Depth: 4},
			{Site: 0x608, Indirect: true, Depth: 4},
		}},
		0x700: {MaxDepth: 0, Flags: stack.FlagStackImbalance},
	}
}

func TestBuild(t *testing.T) {
	a := &fakeAnalyzer{usages: testUsages()}
	r, err := Build(context.Background(), a, testTable(), Options{Workers: 2, Profile: "thumb"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Functions) != 7 {
		t.Fatalf("functions = %d, want 7", len(r.Functions))
	}
	for i := 1; i < len(r.Functions); i++ {
		if r.Functions[i-1].Addr >= r.Functions[i].Addr {
			t.Fatal("functions not sorted by address")
		}
	}

	tests := []struct {
		addr      uint64
		inclusive int
		path      []string
		recursive bool
		unknown   bool
	}{
		{0x400, 24, []string{"leaf"}, false, false},
		{0x200, 32, []string{"a", "leaf"}, false, false},
		{0x300, 64, []string{"b"}, false, false},
		{0x100, 72, []string{"main", "b"}, false, false},
		{0x500, 12, []string{"even", "odd"}, true, true},
		{0x600, 4, []string{"odd"}, true, true},
	}
	for _, tc := range tests {
		f, ok := r.Lookup(tc.addr)
		if !ok {
			t.Fatalf("missing 0x%x", tc.addr)
		}
		if f.Inclusive != tc.inclusive {
			t.Errorf("%s: Inclusive = %d, want %d", f.Name, f.Inclusive, tc.inclusive)
		}
		if !reflect.DeepEqual(f.Path, tc.path) {
			t.Errorf("%s: Path = %v, want %v", f.Name, f.Path, tc.path)
		}
		if f.Recursive != tc.recursive || f.Unknown != tc.unknown {
			t.Errorf("%s: Recursive=%v Unknown=%v, want %v %v", f.Name, f.Recursive, f.Unknown, tc.recursive, tc.unknown)
		}
	}

	s := r.Summary()
	want := Summary{Functions: 7, Errors: 1, Warnings: 0, MaxDepth: 72}
	if s != want {
		t.Errorf("Summary = %+v, want %+v", s, want)
	}
}

func TestBuildOnlyFollowsCallees(t *testing.T) {
	a := &fakeAnalyzer{usages: testUsages()}
	r, err := Build(context.Background(), a, testTable(), Options{Only: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range r.Functions {
		names = append(names, f.Name)
	}
	if !reflect.DeepEqual(names, []string{"a", "leaf"}) {
		t.Errorf("functions = %v, want [a leaf]", names)
	}
	if f, _ := r.Lookup(0x200); f.Inclusive != 32 {
		t.Errorf("a inclusive = %d, want 32", f.Inclusive)
	}
}

func TestBuildUnknownCallee(t *testing.T) {
	usages := map[uint64]stack.Usage{
		0x100: {MaxDepth: 8, Calls: []stack.Call{{Site: 0x104, Target: 0x9000, Depth: 8}}},
	}
	tab := symtab.New([]disasm.Func{{Name: "main", Addr: 0x100, Size: 8}})
	r, err := Build(context.Background(), &fakeAnalyzer{usages: usages}, tab, Options{})
	if err != nil {
		t.Fatal(err)
	}
	f := r.Functions[0]
	if !f.Unknown || f.Inclusive != 8 {
		t.Errorf("main = %+v, want unknown callees and inclusive 8", f)
	}
	want := []Diag{{Addr: 0x9000, Kind: DiagUnknownTarget, Msg: "called from main"}}
	if !reflect.DeepEqual(r.Diagnostics, want) {
		t.Errorf("Diagnostics = %v, want %v", r.Diagnostics, want)
	}
}

func TestBuildDiagnostics(t *testing.T) {
	usages := testUsages()
	r, err := Build(context.Background(), &fakeAnalyzer{usages: usages}, testTable(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var recursion []Diag
	for _, d := range r.Diagnostics {
		if d.Kind == DiagRecursion {
			recursion = append(recursion, d)
		}
	}
	want := []Diag{{Addr: 0x604, Kind: DiagRecursion, Msg: "odd calls even"}}
	if !reflect.DeepEqual(recursion, want) {
		t.Errorf("recursion diagnostics = %v, want %v", recursion, want)
	}

	tab := symtab.New([]disasm.Func{{Name: "stub", Addr: 0x100}})
	r, err = Build(context.Background(), &fakeAnalyzer{}, tab, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Kind != DiagNoSize {
		t.Errorf("Diagnostics = %v, want one no_size", r.Diagnostics)
	}
}

func TestBuildSelfRecursion(t *testing.T) {
	usages := map[uint64]stack.Usage{
		0x100: {MaxDepth: 8, Calls: []stack.Call{
			{Site: 0x104, Target: 0x200, Depth: 8},
		}},
		0x200: {MaxDepth: 16, Calls: []stack.Call{
			{Site: 0x206, Target: 0x200, Depth: 16},
		}},
	}
	tab := symtab.New([]disasm.Func{
		{Name: "main", Addr: 0x100, Size: 0x10},
		{Name: "walk", Addr: 0x200, Size: 0x10},
	})
	r, err := Build(context.Background(), &fakeAnalyzer{usages: usages}, tab, Options{})
	if err != nil {
		t.Fatal(err)
	}
	walk, _ := r.Lookup(0x200)
	if !walk.Recursive || !walk.Unknown || walk.Inclusive != 16 {
		t.Errorf("walk = %+v, want recursive with unknown callees and inclusive 16", walk)
	}
	main, _ := r.Lookup(0x100)
	if !main.Recursive || main.Inclusive != 24 {
		t.Errorf("main = %+v, want recursive through walk and inclusive 24", main)
	}
	want := []Diag{{Addr: 0x206, Kind: DiagRecursion, Msg: "walk calls walk"}}
	if !reflect.DeepEqual(r.Diagnostics, want) {
		t.Errorf("Diagnostics = %v, want %v", r.Diagnostics, want)
	}
}

// Self-recursion as produced by the walker for a real listing.
func TestBuildSelfRecursionListing(t *testing.T) {
	const listing = `
08000100 <fact>:
 8000100:	b510      	push	{r4, lr}
 8000102:	2800      	cmp	r0, #0
 8000104:	d001      	beq.n	800010a <fact+0xa>
 8000106:	f7ff fffb 	bl	8000100 <fact>
 800010a:	bd10      	pop	{r4, pc}
`
	l, err := disasm.ParseListing(strings.NewReader(listing))
	if err != nil {
		t.Fatal(err)
	}
	tab := symtab.New(l.Funcs())
	an := stack.NewAnalyzer(l, stack.WithNoReturn(tab), stack.WithProfile(arm.Thumb))
	r, err := Build(context.Background(), an, tab, Options{})
	if err != nil {
		t.Fatal(err)
	}
	f, ok := r.Lookup(0x8000100)
	if !ok {
		t.Fatal("fact missing")
	}
	if !f.Recursive || f.Inclusive != 8 {
		t.Errorf("fact = %+v, want recursive with inclusive 8", f)
	}
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Kind != DiagRecursion {
		t.Errorf("Diagnostics = %v, want one recursion", r.Diagnostics)
	}
}

func TestBuildUnknownFunction(t *testing.T) {
	_, err := Build(context.Background(), &fakeAnalyzer{}, testTable(), Options{Only: []string{"nope"}})
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("err = %v, want ErrUnknownFunction", err)
	}
}

func TestBuildLimit(t *testing.T) {
	a := &fakeAnalyzer{usages: testUsages()}
	r, err := Build(context.Background(), a, testTable(), Options{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Functions) != 3 {
		t.Errorf("functions = %d, want 3", len(r.Functions))
	}
	if n := len(r.Diagnostics); n != 1 || r.Diagnostics[0].Kind != DiagLimited {
		t.Errorf("Diagnostics = %v, want one limited", r.Diagnostics)
	}
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, &fakeAnalyzer{usages: testUsages()}, testTable(), Options{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBuildDeterministic(t *testing.T) {
	var first *Report
	for range 5 {
		r, err := Build(context.Background(), &fakeAnalyzer{usages: testUsages()}, testTable(), Options{Workers: 4})
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = r
			continue
		}
		if !reflect.DeepEqual(first, r) {
			t.Fatal("reports differ between runs")
		}
	}
}

// End to end over a real analyzer and listing.
func TestBuildWithListing(t *testing.T) {
	const listing = `
08000100 <helper>:
 8000100:	b510      	push	{r4, lr}
 8000102:	b084      	sub	sp, #16
 8000104:	b004      	add	sp, #16
 8000106:	bd10      	pop	{r4, pc}

08000108 <main>:
 8000108:	b580      	push	{r7, lr}
 800010a:	f7ff fff9 	bl	8000100 <helper>
 800010e:	bd80      	pop	{r7, pc}
`
	l, err := disasm.ParseListing(strings.NewReader(listing))
	if err != nil {
		t.Fatal(err)
	}
	tab := symtab.New(l.Funcs())
	an := stack.NewAnalyzer(l, stack.WithNoReturn(tab), stack.WithProfile(arm.Thumb))
	r, err := Build(context.Background(), an, tab, Options{})
	if err != nil {
		t.Fatal(err)
	}
	main, ok := r.Lookup(0x8000108)
	if !ok {
		t.Fatal("main missing")
	}
	if main.Usage.MaxDepth != 8 || main.Inclusive != 32 || main.Usage.Flags != 0 {
		t.Errorf("main = %+v", main)
	}
}
