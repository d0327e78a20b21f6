package main

import (
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/ac"
	"github.com/edp1096/toy-spice/pkg/analysis"
	"github.com/edp1096/toy-spice/pkg/circuit"
	"github.com/edp1096/toy-spice/pkg/config"
	"github.com/edp1096/toy-spice/pkg/netlist"
	"github.com/edp1096/toy-spice/pkg/transient"
	"github.com/edp1096/toy-spice/pkg/util"
)

func sweepTypeFrom(s string) ac.SweepType {
	switch s {
	case "DEC":
		return ac.Decade
	case "OCT":
		return ac.Octave
	default:
		return ac.Linear
	}
}

func run(cfg config.Config) error {
	content, err := os.ReadFile(cfg.Netlist)
	if err != nil {
		return err
	}

	parsed, err := netlist.Parse(string(content))
	if err != nil {
		return err
	}
	log.Info("parsed netlist", "title", parsed.Title, "elements", len(parsed.Elements))

	ckt, err := circuit.Build(parsed.Title, parsed.Elements)
	if err != nil {
		return err
	}

	var results map[string][]float64

	switch parsed.Analysis {
	case netlist.AnalysisOP:
		op := analysis.NewOP(ckt)
		if err := op.Execute(); err != nil {
			return err
		}
		results = op.Results()

	case netlist.AnalysisTRAN:
		p := parsed.TranParam
		tcfg := transient.DefaultConfig(p.TStop, p.TStep)
		if p.TMax > 0 {
			tcfg.DtMax = p.TMax
		}
		tcfg.InitialDC = !p.UIC
		tr := analysis.NewTransient(ckt, tcfg, p.TStart)
		if err := tr.Execute(); err != nil {
			return err
		}
		results = tr.Results()

	case netlist.AnalysisDC:
		p := parsed.DCParam
		var names []string
		var starts, stops, incs []float64
		names = append(names, p.Source1)
		starts = append(starts, p.Start1)
		stops = append(stops, p.Stop1)
		incs = append(incs, p.Increment1)
		if p.Source2 != "" {
			names = append(names, p.Source2)
			starts = append(starts, p.Start2)
			stops = append(stops, p.Stop2)
			incs = append(incs, p.Increment2)
		}
		dc, err := analysis.NewDCSweep(ckt, names, starts, stops, incs)
		if err != nil {
			return err
		}
		if err := dc.Execute(); err != nil {
			return err
		}
		results = dc.Results()

	case netlist.AnalysisAC:
		p := parsed.ACParam
		sweep := ac.NewAC(ckt, sweepTypeFrom(p.Sweep), p.Points, p.FStart, p.FStop, len(ckt.Probes()) > 0, consts.RoomTempKelvin)
		if err := sweep.Execute(); err != nil {
			return err
		}
		return printACResults(sweep.Results(), cfg.Quiet)

	default:
		log.Fatal("unsupported analysis type")
	}

	if !cfg.Quiet {
		printResults(results)
	}
	return nil
}

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		log.SetLevel(level)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func printACResults(results map[string][]float64, quiet bool) error {
	if quiet {
		return nil
	}
	freqs := results["FREQ"]
	var voltageNames, currentNames, noiseNames []string
	for name := range results {
		if strings.HasSuffix(name, "_MAG") {
			base := strings.TrimSuffix(name, "_MAG")
			switch {
			case strings.HasPrefix(base, "V("):
				voltageNames = append(voltageNames, base)
			case strings.HasPrefix(base, "I("):
				currentNames = append(currentNames, base)
			case strings.HasPrefix(base, "VN("):
				noiseNames = append(noiseNames, base)
			}
		}
	}
	sort.Strings(voltageNames)
	sort.Strings(currentNames)
	sort.Strings(noiseNames)

	for i, f := range freqs {
		row := util.FormatFrequency(f)
		for _, name := range voltageNames {
			row += " " + util.FormatMagnitudePhase(name, results[name+"_MAG"][i], results[name+"_PHASE"][i])
		}
		for _, name := range currentNames {
			row += " " + util.FormatMagnitudePhase(name, results[name+"_MAG"][i], results[name+"_PHASE"][i])
		}
		for _, name := range noiseNames {
			row += " " + name + "=" + util.FormatValueFactor(results[name+"_MAG"][i], "V")
		}
		log.Info(row)
	}
	return nil
}

func printResults(results map[string][]float64) {
	if sweep1, isDC := results["SWEEP1"]; isDC {
		printDC(results, sweep1)
		return
	}
	if times, isTR := results["TIME"]; isTR && len(times) > 1 {
		printTransient(results, times)
		return
	}
	printOP(results)
}

func namesByPrefix(results map[string][]float64, prefix string, skip map[string]bool) []string {
	var out []string
	for name := range results {
		if skip[name] {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func printOP(results map[string][]float64) {
	voltages := namesByPrefix(results, "V(", map[string]bool{"TIME": true})
	currents := namesByPrefix(results, "I(", map[string]bool{"TIME": true})
	log.Info("operating point")
	for _, name := range voltages {
		log.Infof("  %s = %s", name, util.FormatValueFactor(results[name][0], "V"))
	}
	for _, name := range currents {
		log.Infof("  %s = %s", name, util.FormatValueFactor(results[name][0], "A"))
	}
}

func printDC(results map[string][]float64, sweep1 []float64) {
	skip := map[string]bool{"SWEEP1": true, "SWEEP2": true}
	voltages := namesByPrefix(results, "V(", skip)
	currents := namesByPrefix(results, "I(", skip)
	sweep2, hasNested := results["SWEEP2"]

	for i := range sweep1 {
		row := "V1=" + util.FormatValueFactor(sweep1[i], "V")
		if hasNested {
			row += " V2=" + util.FormatValueFactor(sweep2[i], "V")
		}
		for _, name := range voltages {
			row += " " + name + "=" + util.FormatValueFactor(results[name][i], "V")
		}
		for _, name := range currents {
			row += " " + name + "=" + util.FormatValueFactor(results[name][i], "A")
		}
		log.Info(row)
	}
}

func printTransient(results map[string][]float64, times []float64) {
	skip := map[string]bool{"TIME": true}
	voltages := namesByPrefix(results, "V(", skip)
	currents := namesByPrefix(results, "I(", skip)

	for i, t := range times {
		row := util.FormatValueFactor(t, "s")
		for _, name := range voltages {
			row += " " + name + "=" + util.FormatValueFactor(results[name][i], "V")
		}
		for _, name := range currents {
			row += " " + name + "=" + util.FormatValueFactor(results[name][i], "A")
		}
		log.Info(row)
	}
}
