package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/tsb/numus"
	"github.com/tsb/numus/rpc"
	"github.com/tsb/numus/version"
)

func main() {
	addr := flag.String("addr", rpc.DefaultAddress, "Address to listen on for automation frames.")
	bars := flag.Bool("bars", false, "Print only the first frame of every bar.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	receiver, err := rpc.NewReceiver(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not listen: %v\n", err)
		os.Exit(1)
	}
	defer receiver.Close()
	fmt.Fprintf(os.Stderr, "listening on %v\n", receiver.Addr())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	lastBar := -1
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-receiver.C:
			if !ok {
				return
			}
			if *bars && a.Bar == lastBar {
				continue
			}
			lastBar = a.Bar
			fmt.Println(format(a))
		}
	}
}

func format(a numus.Automation) string {
	s := fmt.Sprintf("tick %5d bar %4d energy %.2f gain %.2f %s", a.Tick, a.Bar, a.Energy, a.MasterGain, a.Section)
	if a.Transition {
		s += fmt.Sprintf(" [%s > %s %.2f/%.2f hp %.0f lp %.0f]", a.From, a.To, a.Crossfade.GainFrom, a.Crossfade.GainTo, a.Crossfade.FilterFrom, a.Crossfade.FilterTo)
	}
	return s
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "numus-monitor prints the automation frames sent by numus-play -sync.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
