// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command meshcli prints the Vulkan capable devices as JSON.
package main

import (
	"encoding/json"
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/core"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("indent", false, "Indent the output")
)

func main() {
	flag.Parse()

	instance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, nil, core.InstanceConfiguration{
		DebugMode: *debug,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer instance.Destroy()

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(instance.PhysicalDevicesInfo()); err != nil {
		log.Fatal(err)
	}
}
