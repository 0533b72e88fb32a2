// Package nodecfg renders cluster node blocks and script load directives and
// appends them to the cluster's configuration files.
package nodecfg

import (
	"strings"

	"github.com/saveenergy/brofiler/pkg/types"
)

const (
	workerMarker = "###WORKER###"
	otherMarker  = "###OTHER###"
	loadMarker   = "###Brofiler###"

	DefaultScriptPrefix = "brofiler/"
)

// Format renders d as a node.cfg block. Roles that capture traffic carry an
// interface line; every other role does not.
func Format(d types.DeviceDescriptor) string {
	var b strings.Builder
	b.WriteString("#\n")
	if d.Role().NeedsInterface() {
		b.WriteString(workerMarker)
	} else {
		b.WriteString(otherMarker)
	}
	b.WriteString("\n[")
	b.WriteString(d.Name())
	b.WriteString("]\ntype=")
	b.WriteString(string(d.Role()))
	b.WriteString("\nhost=")
	b.WriteString(d.Host())
	b.WriteString("\n")
	if d.Role().NeedsInterface() {
		b.WriteString("interface=")
		b.WriteString(d.Interface())
		b.WriteString("\n")
	}
	return b.String()
}

// FormatLoad renders the load directive for script under prefix.
func FormatLoad(prefix, script string) string {
	return "\n" + loadMarker + "\n@load " + prefix + script + "\n"
}
