package cell_views

import (
	"fmt"
	"html/template"

	"mazelab/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ProgressView is a small table describing the latest training episode.
type ProgressView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewProgressView(
	done <-chan struct{},
	boards <-chan Board,
) (pv *ProgressView) {
	pv = &ProgressView{id: "progress"}
	pv.updates = channerics.Convert(done, boards, pv.onUpdate)
	return
}

func (pv *ProgressView) Updates() <-chan []fastview.EleUpdate {
	return pv.updates
}

// fields are the element id, label and value of each row.
func (pv *ProgressView) fields(p Progress) [][3]string {
	return [][3]string{
		{pv.id + "-episode", "episode", fmt.Sprintf("%d", p.Episode)},
		{pv.id + "-steps", "steps", fmt.Sprintf("%d", p.Steps)},
		{pv.id + "-reward", "reward", fmt.Sprintf("%.3f", p.Reward)},
		{pv.id + "-outcome", "outcome", p.Outcome},
		{pv.id + "-goalrate", "goal rate", fmt.Sprintf("%.1f%%", 100*p.GoalRate)},
	}
}

func (pv *ProgressView) onUpdate(board Board) (ops []fastview.EleUpdate) {
	for _, field := range pv.fields(board.Progress) {
		ops = append(ops, fastview.EleUpdate{
			EleId: field[0],
			Ops:   []fastview.Op{{Key: "textContent", Value: field[2]}},
		})
	}
	return
}

func (pv *ProgressView) Parse(
	t *template.Template,
) (name string, err error) {
	name = pv.id
	addedMap := template.FuncMap{
		"progressFields": pv.fields,
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<table id="` + pv.id + `" style="font-family: monospace;">
			{{ range $field := progressFields .Progress }}
			<tr>
				<td>{{ index $field 1 }}</td>
				<td id="{{ index $field 0 }}">{{ index $field 2 }}</td>
			</tr>
			{{ end }}
		</table>
		{{ end }}`)
	return
}
