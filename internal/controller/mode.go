package controller

// Mode decides what a MapController may do with its maps.
type Mode interface {
	Name() string
	// Editable reports whether structural and text edits are allowed.
	Editable() bool
	// Locks reports whether opened files are locked against other editors.
	Locks() bool
}

type mindMapMode struct{}

func (mindMapMode) Name() string   { return "mindmap" }
func (mindMapMode) Editable() bool { return true }
func (mindMapMode) Locks() bool    { return true }

type browseMode struct{}

func (browseMode) Name() string   { return "browse" }
func (browseMode) Editable() bool { return false }
func (browseMode) Locks() bool    { return false }

// Available modes.
var (
	MindMapMode Mode = mindMapMode{}
	BrowseMode  Mode = browseMode{}
)
