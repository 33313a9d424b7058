package render

// Theme holds colors for graph and report rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by call kind.
	EdgeDirect   string // bl to a known function
	EdgeTail     string // branch out of the function
	EdgeIndirect string // call through a register
	EdgeWorst    string // edge on the deepest path

	// Node fills by analysis outcome.
	WarnFill     string // any warning flag
	ErrorFill    string // stack_imbalance or stack_underrun
	StubFill     string // noreturn functions and terminal blocks
	ExternalText string // targets outside the analyzed set

	// Depth bars.
	DepthBar string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeDirect:   "#424242", // dark gray
	EdgeTail:     "#00695C", // teal
	EdgeIndirect: "#9E9E9E", // gray
	EdgeWorst:    "#0B3D91", // NASA blue

	WarnFill:     "#FFF3E0", // orange 50
	ErrorFill:    "#FFCDD2", // red 100
	StubFill:     "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	DepthBar: "#0B3D91",
}
