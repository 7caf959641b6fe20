// Command irrgen queries an IRRd server, recursively expands the given
// AS-set/route-set/AS-number/prefix seeds, and prints a router
// configuration fragment for the resolved prefix and origin-AS sets
// (spec.md §1, §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/irrquery/irrgen/internal/config"
	"github.com/irrquery/irrgen/internal/depgraph"
	"github.com/irrquery/irrgen/internal/expander"
	"github.com/irrquery/irrgen/internal/printer"
	"github.com/irrquery/irrgen/internal/radixtree"
	"github.com/irrquery/irrgen/internal/validate"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, seeds, objectName, kind, debugGraph, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	classified, err := validate.Classify(seeds, cfg.Family, cfg.MaxLen, cfg.ExpandSpecialASN)
	if err != nil {
		log.WithError(err).Fatal("irrgen: invalid seed")
	}

	var graph *depgraph.Graph
	if debugGraph {
		graph = depgraph.NewGraph()
	}

	ex, err := expander.New(expander.Config{
		Family:           cfg.Family,
		Server:           cfg.Server,
		Port:             cfg.Port,
		Sources:          cfg.Sources,
		UseSource:        cfg.UseSource,
		MaxDepth:         cfg.MaxDepth,
		MaxLen:           cfg.MaxLen,
		ValidateASNs:     cfg.ValidateASNs,
		Pipelining:       cfg.Pipelining,
		ExpandSpecialASN: cfg.ExpandSpecialASN,
		Identify:         cfg.Identify,
		ClientID:         cfg.ClientID,
		NeedPrefixes:     cfg.NeedPrefixes,
		Graph:            graph,
	}, classified)
	if err != nil {
		log.WithError(err).Fatal("irrgen: seeding expander")
	}

	if err := ex.Run(); err != nil {
		log.WithError(err).Fatal("irrgen: expansion failed")
	}

	ex.Tree.Aggregate()
	if cfg.MaxLen < cfg.Family.MaxLen() {
		ex.Tree.Refine(cfg.MaxLen)
	}

	p := printer.Cisco{}
	if err := printResult(p, kind, objectName, ex); err != nil {
		log.WithError(err).Fatal("irrgen: printing result")
	}

	if debugGraph {
		printDebugGraph(graph, ex)
	}
}

func printResult(p printer.Cisco, kind, name string, ex *expander.Expander) error {
	switch kind {
	case "prefix-list":
		return p.PrintPrefixList(os.Stdout, name, ex.Tree)
	case "route-filter-list":
		return p.PrintRouteFilterList(os.Stdout, name, ex.Tree)
	case "extended-acl":
		return p.PrintExtendedACL(os.Stdout, name, ex.Tree)
	case "as-path":
		return p.PrintASPath(os.Stdout, name, ex.ASNs)
	case "as-set":
		return p.PrintASSet(os.Stdout, name, ex.ASNs)
	default:
		return fmt.Errorf("irrgen: unknown output kind %q", kind)
	}
}

func printDebugGraph(g *depgraph.Graph, ex *expander.Expander) {
	fmt.Fprint(os.Stderr, g.AsciiTree())
	for _, cc := range g.ConnectedComponents() {
		fmt.Fprintf(os.Stderr, "! component: %s\n", strings.Join(cc, " "))
	}
	for _, ov := range depgraph.OverlayReport(ex.Tree) {
		fmt.Fprintf(os.Stderr, "! overlay: %s covers %s\n", ov.Aggregate, ov.Member)
	}
}

// parseArgs builds a config.Config and the ordered seed token list from
// the command line, per spec.md §6's downstream contract. CLI parsing
// itself is out of scope (spec.md §1); this is the minimal driver that
// satisfies the documented flag surface.
func parseArgs(args []string) (config.Config, []string, string, string, bool, error) {
	cfg := config.Default()

	fs := flag.NewFlagSet("irrgen", flag.ContinueOnError)

	ipv6 := fs.Bool("6", false, "generate for IPv6 instead of IPv4")
	fs.StringVar(&cfg.Server, "h", "whois.radb.net", "IRRd server host")
	fs.StringVar(&cfg.Port, "p", "43", "IRRd server port")
	fs.StringVar(&cfg.Sources, "s", os.Getenv("IRRD_SOURCES"), "comma-separated preferred IRR source order")
	fs.BoolVar(&cfg.UseSource, "S", true, "honour per-object SOURCE:: prefixes")
	fs.IntVar(&cfg.MaxDepth, "depth", 0, "maximum as-set/route-set recursion depth (0 = unlimited)")
	fs.IntVar(&cfg.MaxLen, "L", 32, "maximum prefix length to accept")
	fs.BoolVar(&cfg.ValidateASNs, "validate-asns", false, "drop ASNs that resolve to no prefixes")
	fs.BoolVar(&cfg.Pipelining, "pipeline", true, "pipeline queries over a single connection")
	fs.BoolVar(&cfg.ExpandSpecialASN, "expand-special-asn", false, "allow reserved/private ASNs")
	fs.BoolVar(&cfg.Identify, "identify", false, "send a client identification string")
	fs.StringVar(&cfg.ClientID, "client-id", "irrgen", "client identification string")
	debugGraph := fs.Bool("debug-graph", false, "print as-set dependency components and prefix overlays to stderr")

	kind := fs.String("t", "prefix-list", "output kind: prefix-list, route-filter-list, extended-acl, as-path, as-set")
	name := fs.String("l", "NN", "the generated object's name")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, nil, "", "", false, err
	}

	if *ipv6 {
		cfg.Family = radixtree.IPv6
		if cfg.MaxLen == 32 {
			cfg.MaxLen = 128
		}
	}
	cfg.NeedPrefixes = *kind != "as-path" && *kind != "as-set"

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, "", "", false, err
	}

	seeds := fs.Args()
	if len(seeds) == 0 {
		return config.Config{}, nil, "", "", false, fmt.Errorf("irrgen: at least one seed object is required")
	}

	return cfg, seeds, *name, *kind, *debugGraph, nil
}
