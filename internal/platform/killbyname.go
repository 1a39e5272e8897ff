package platform

import (
	"strings"

	"github.com/mitchellh/go-ps"
)

// pidsByName returns the PIDs of every running process whose executable
// basename matches name, case-insensitively and ignoring a .exe suffix.
func pidsByName(name string) []int {
	procs, err := ps.Processes()
	if err != nil {
		return nil
	}
	want := strings.ToLower(strings.TrimSuffix(name, ".exe"))
	var pids []int
	for _, p := range procs {
		exe := strings.ToLower(strings.TrimSuffix(p.Executable(), ".exe"))
		if exe == want {
			pids = append(pids, p.Pid())
		}
	}
	return pids
}
