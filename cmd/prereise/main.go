/*
Copyright (C) 2025 the PreREISE authors.
This file is part of PreREISE.

PreREISE is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PreREISE is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PreREISE.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command prereise generates plant-level power generation profiles from
// gridded weather archives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/isond/prereise"
)

func main() {
	configFile := flag.String("config", "none", "Path to configuration file")
	debugLevel := flag.Int("debug", 3, "Amount of logging output; a higher number means more messages")
	flag.Parse()

	if *configFile == "none" {
		fmt.Println("Please set `-config' flag and run again: ie: prereise -config=/path/to/config.toml")
		fmt.Println("For more information try typing `prereise --help'")
		os.Exit(1)
	}
	prereise.DebugLevel = *debugLevel

	cfg, err := prereise.ReadConfigFile(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pt, err := prereise.Run(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	w, err := prereise.NewProfileWriter(cfg.Output, os.Stdout)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Output.Kind == "csv" && cfg.Output.Path != "-" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = &prereise.CSVWriter{W: f}
	}
	if err = w.Write(pt); err != nil {
		log.Fatal(err)
	}
	if err = w.Close(); err != nil {
		log.Fatal(err)
	}
	prereise.Log(fmt.Sprintf("Wrote %d profiles with %d steps each.", len(pt.Assets), len(pt.Index)), 0)
}
