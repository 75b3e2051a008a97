// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// reduce_generator generates pkg/core/reduce/gen_specialized.go: the GroupReduce, BlockReduce and
// BlockAllReduce specialized for every (kind, width), with the butterfly rounds and the vector
// components unrolled, and their registration.
//
// It is meant to be run by `go generate` from the pkg/core/reduce directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path"
	"text/template"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

type KindInfo struct {
	// Kind is the name of the reduce.Kind constant, also used as the suffix of the generated functions.
	Kind string

	// Op is the name of the generic operation type.
	Op string

	// Identity is the Go expression of the identity element.
	Identity string

	// IsMax selects the combine: max(a, b) if true, a + b otherwise.
	IsMax bool
}

type SpecializationInfo struct {
	KindInfo
	Width      int
	Vec        string
	Components []int
}

type Data struct {
	// LaneMasks are the partner distances of the butterfly rounds, in order.
	LaneMasks       []int
	Specializations []SpecializationInfo
}

var (
	kinds = []KindInfo{
		{Kind: "Max", Op: "MaxOp", Identity: "NegSentinel", IsMax: true},
		{Kind: "Sum", Op: "SumOp", Identity: "0"},
	}
	widths   = []int{1, 2, 4}
	fileName = "gen_specialized.go"
)

func makeData() (data Data) {
	data.LaneMasks = []int{16, 8, 4, 2, 1}
	for _, kind := range kinds {
		for _, width := range widths {
			variant := SpecializationInfo{
				KindInfo: kind,
				Width:    width,
				Vec:      fmt.Sprintf("Vec%d", width),
			}
			for c := range width {
				variant.Components = append(variant.Components, c)
			}
			data.Specializations = append(data.Specializations, variant)
		}
	}
	return
}

var specializedTemplate = template.Must(template.New(fileName).Parse(
	`/***** File generated by ./internal/cmd/reduce_generator. Don't edit it directly. *****/

package reduce

import (
	"github.com/gomlx/warpreduce/pkg/core/simt"
)

func init() {
{{- range .Specializations}}
	registerGroupReduce[{{.Vec}}]({{.Kind}}, GroupReduce{{.Kind}}{{.Width}})
	registerBlockReduce[{{.Vec}}]({{.Kind}}, BlockReduce{{.Kind}}{{.Width}})
	registerBlockAllReduce[{{.Vec}}]({{.Kind}}, BlockAllReduce{{.Kind}}{{.Width}})
{{- end}}
}
{{- $laneMasks := .LaneMasks}}
{{- range .Specializations}}
{{- $variant := .}}

// groupRound{{.Kind}}{{.Width}} is one butterfly round of GroupReduce{{.Kind}}{{.Width}}.
func groupRound{{.Kind}}{{.Width}}(regs *[simt.GroupSize]{{.Vec}}, laneMask int) {
	partner := simt.ShuffleXor(regs, laneMask)
	for lane := range regs {
{{- range .Components}}
{{- if $variant.IsMax}}
		regs[lane][{{.}}] = max(regs[lane][{{.}}], partner[lane][{{.}}])
{{- else}}
		regs[lane][{{.}}] += partner[lane][{{.}}]
{{- end}}
{{- end}}
	}
}

// GroupReduce{{.Kind}}{{.Width}} is GroupReduce[{{.Op}}, {{.Vec}}] specialized.
func GroupReduce{{.Kind}}{{.Width}}(regs *[simt.GroupSize]{{.Vec}}) {
{{- range $laneMasks}}
	groupRound{{$variant.Kind}}{{$variant.Width}}(regs, {{.}})
{{- end}}
}

// BlockReduce{{.Kind}}{{.Width}} is BlockReduce[{{.Op}}, {{.Vec}}] specialized.
func BlockReduce{{.Kind}}{{.Width}}(g *simt.Group, regs *[simt.GroupSize]{{.Vec}}, staging *Staging[{{.Vec}}]) {
	GroupReduce{{.Kind}}{{.Width}}(regs)
	slots := staging.slots
	groupID := g.ID()
{{- range .Components}}
	slots[{{.}}*simt.GroupSize+groupID] = regs[0][{{.}}]
{{- end}}
	g.Sync()
	numGroups := g.NumGroups()
	for lane := range regs {
		if g.LaneIndex(lane) < numGroups {
			regs[lane] = {{.Vec}}{ {{- range $i, $c := .Components}}{{if $i}}, {{end}}slots[{{$c}}*simt.GroupSize+lane]{{end -}} }
		} else {
			regs[lane] = {{.Vec}}{ {{- range $i, $c := .Components}}{{if $i}}, {{end}}{{$variant.Identity}}{{end -}} }
		}
	}
	GroupReduce{{.Kind}}{{.Width}}(regs)
}

// BlockAllReduce{{.Kind}}{{.Width}} is BlockAllReduce[{{.Op}}, {{.Vec}}] specialized.
func BlockAllReduce{{.Kind}}{{.Width}}(g *simt.Group, regs *[simt.GroupSize]{{.Vec}}, staging *Staging[{{.Vec}}]) {
	BlockReduce{{.Kind}}{{.Width}}(g, regs, staging)
	broadcast := staging.slots[{{.Width}}*simt.GroupSize:]
	if g.IsFirst() {
{{- range .Components}}
		broadcast[{{.}}] = regs[0][{{.}}]
{{- end}}
	}
	g.Sync()
	value := {{.Vec}}{ {{- range $i, $c := .Components}}{{if $i}}, {{end}}broadcast[{{$c}}]{{end -}} }
	for lane := range regs {
		regs[lane] = value
	}
}
{{- end}}
`))

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	fullPath := path.Join(must.M1(os.Getwd()), fileName)
	f := must.M1(os.Create(fullPath))
	must.M(specializedTemplate.Execute(f, makeData()))
	must.M(f.Close())

	cmd := exec.Command("gofmt", "-w", fullPath)
	klog.V(1).Infof("\t%s\n", cmd)
	must.M(cmd.Run())
	fmt.Printf("✅ reduce_generator:  \tsuccessfully generated %s\n", fullPath)
}
