package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gpudbg/common"
	"gpudbg/coords"
	"gpudbg/coordset"
	"gpudbg/state"
)

func main() {
	ssDir := flag.String("ss_dir", "", "Path to the snapshot directory")
	granularity := flag.String("granularity", "threads", "Enumeration granularity: devices|sms|warps|lanes|kernels|blocks|threads")
	maskSpec := flag.String("mask", "valid", "Comma separated predicates: valid,bkpt,excpt,sm_excpt,sngl,trap,clock,active or all")
	order := flag.String("order", "logical", "Compare order: logical|physical")
	originSpec := flag.String("origin", "", "Order nearest to origin, as dev,sm,warp,lane")
	dev := flag.Uint("dev", wildcard, "Filter device index")
	sm := flag.Uint("sm", wildcard, "Filter SM index")
	warp := flag.Uint("warp", wildcard, "Filter warp index")
	lane := flag.Uint("lane", wildcard, "Filter lane index")
	kernelID := flag.Uint64("kernel", coords.WildcardID, "Filter kernel id")
	logging := flag.String("logging", "warning", "Log level: debug|info|warning|error")

	flag.Parse()

	if *ssDir == "" {
		fmt.Println("Coordinate Lister : Error: Missing directory string on -ss_dir option")
		os.Exit(1)
	}

	log := common.NewLogrusLogger(parseSeverity(*logging))

	snap, err := state.LoadSnapshot(*ssDir, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	typ, err := parseGranularity(*granularity)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	mask, err := parseMask(*maskSpec)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cmpType := coords.CompareLogical
	if *order == "physical" {
		cmpType = coords.ComparePhysical
	}

	filter := coords.Wild()
	filter.Physical.Dev = filterIdx(*dev)
	filter.Physical.SM = filterIdx(*sm)
	filter.Physical.Warp = filterIdx(*warp)
	filter.Physical.Lane = filterIdx(*lane)
	filter.Logical.KernelID = *kernelID

	var origin *coords.Coords
	if *originSpec != "" {
		o, err := parseOrigin(*originSpec)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		origin = &o
	}

	set, err := coordset.New(snap, typ, mask, cmpType, filter, origin)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	for _, c := range set.Coords() {
		fmt.Println(c)
	}
	fmt.Printf("Found %d %s coordinate(s) [mask %s]\n", set.Size(), set.Type(), set.Mask())
}

// wildcard marks an unset index flag.
const wildcard = ^uint(0)

func filterIdx(v uint) uint32 {
	if v == wildcard {
		return coords.WildcardIdx
	}
	return uint32(v)
}

func parseSeverity(s string) common.Severity {
	switch strings.ToLower(s) {
	case "debug":
		return common.SeverityDebug
	case "info":
		return common.SeverityInfo
	case "error":
		return common.SeverityError
	default:
		return common.SeverityWarning
	}
}

func parseGranularity(s string) (coordset.Type, error) {
	switch strings.ToLower(s) {
	case "devices":
		return coordset.Devices, nil
	case "sms":
		return coordset.SMs, nil
	case "warps":
		return coordset.Warps, nil
	case "lanes":
		return coordset.Lanes, nil
	case "kernels":
		return coordset.Kernels, nil
	case "blocks":
		return coordset.Blocks, nil
	case "threads":
		return coordset.Threads, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q", s)
	}
}

func parseMask(spec string) (coordset.Mask, error) {
	mask := coordset.SelectAll
	for _, name := range strings.Split(spec, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "", "all":
		case "valid":
			mask |= coordset.SelectValid
		case "bkpt":
			mask |= coordset.SelectBkpt
		case "excpt":
			mask |= coordset.SelectExcpt
		case "sm_excpt":
			mask |= coordset.SelectSMAtExcpt
		case "sngl":
			mask |= coordset.SelectSngl
		case "trap":
			mask |= coordset.SelectTrap
		case "clock":
			mask |= coordset.SelectCurrentClock
		case "active":
			mask |= coordset.SelectActive
		default:
			return 0, fmt.Errorf("unknown mask predicate %q", name)
		}
	}
	return mask, nil
}

// parseOrigin reads a physical origin as dev,sm,warp,lane.
func parseOrigin(spec string) (coords.Coords, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return coords.Coords{}, fmt.Errorf("origin: want dev,sm,warp,lane, got %q", spec)
	}
	var vals [4]uint32
	for i, p := range parts {
		var v uint32
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &v); err != nil {
			return coords.Coords{}, fmt.Errorf("origin: %w", err)
		}
		vals[i] = v
	}
	o := coords.Wild()
	o.Physical = coords.Physical{Dev: vals[0], SM: vals[1], Warp: vals[2], Lane: vals[3]}
	return o, nil
}
