package ui

import (
	"fmt"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
)

// SetStats is one tile set's row in the streaming panel.
type SetStats struct {
	Name             string
	Kind             string
	Capacity         int
	Active           int
	Added, Removed   int
	ReadsOutstanding int
	MaxLevel         int
	TopVotes         int
}

// FrameStats is what the overlay shows for one frame.
type FrameStats struct {
	Frame     uint64
	FrameTime time.Duration
	// Patches is the live leaf count out of PatchBudget.
	Patches     int
	PatchBudget int
	Deepest     int
	Regions     int
	Triangles   int
	Pinned      bool
	Wireframe   bool
	Sets        []SetStats
}

// TerrainPanel draws the streaming and patch tree statistics window.
func TerrainPanel(s FrameStats) {
	flags := imgui.WindowFlagsAlwaysAutoResize | imgui.WindowFlagsNoSavedSettings
	if !imgui.BeginV("Terrain", nil, flags) {
		imgui.End()
		return
	}
	defer imgui.End()

	ms := float64(s.FrameTime.Microseconds()) / 1000
	fps := 0.0
	if ms > 0 {
		fps = 1000 / ms
	}
	imgui.Text(fmt.Sprintf("Frame %d  %.2f ms  (%.0f fps)", s.Frame, ms, fps))
	imgui.Text(fmt.Sprintf("Patches %d / %d  deepest level %d", s.Patches, s.PatchBudget, s.Deepest))
	imgui.Text(fmt.Sprintf("Regions %d  triangles %d", s.Regions, s.Triangles))
	if s.Pinned {
		imgui.TextColored(imgui.NewVec4(1, 0.6, 0.3, 1), "optimise camera pinned")
	}
	if s.Wireframe {
		imgui.Text("wireframe on")
	}
	imgui.Separator()

	tableFlags := imgui.TableFlagsBordersV | imgui.TableFlagsBordersOuterH | imgui.TableFlagsRowBg | imgui.TableFlagsSizingStretchProp
	if imgui.BeginTableV("tilesets", 8, tableFlags, imgui.Vec2{}, 0) {
		imgui.TableSetupColumn("Set")
		imgui.TableSetupColumn("Kind")
		imgui.TableSetupColumn("Active")
		imgui.TableSetupColumn("+")
		imgui.TableSetupColumn("-")
		imgui.TableSetupColumn("Reads")
		imgui.TableSetupColumn("Level")
		imgui.TableSetupColumn("Votes")
		imgui.TableHeadersRow()
		for _, set := range s.Sets {
			imgui.TableNextRow()
			imgui.TableNextColumn()
			imgui.Text(set.Name)
			imgui.TableNextColumn()
			imgui.Text(set.Kind)
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d/%d", set.Active, set.Capacity))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprint(set.Added))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprint(set.Removed))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprint(set.ReadsOutstanding))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprint(set.MaxLevel))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprint(set.TopVotes))
		}
		imgui.EndTable()
	}
}
