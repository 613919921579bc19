// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package compiler

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// bannerRunner answers version probes with a canned banner.
type bannerRunner struct {
	banner string
	runs   [][]string
}

func (r *bannerRunner) Run(argv []string, logPath string) (int, error) {
	r.runs = append(r.runs, argv)
	return 0, nil
}

func (r *bannerRunner) Output(argv []string) (string, error) {
	if r.banner == "" {
		return "", fmt.Errorf("no banner")
	}
	return r.banner, nil
}

func TestIdentifyVendor_FromBanner(t *testing.T) {
	tests := []struct {
		banner string
		want   Vendor
	}{
		{"GNU Fortran (GCC) 13.2.0", VendorGCC},
		{"Intel(R) Fortran Compiler Classic 2021.10.0", VendorIntelClassic},
		{"Intel(R) Fortran Compiler for applications running on Intel(R) 64, Version 2024.0", VendorIntelLLVM},
		{"nvfortran 23.11-0 64-bit target", VendorNVHPC},
		{"NAG Fortran Compiler Release 7.1", VendorNAG},
		{"LFortran version 0.30.0", VendorLFortran},
		{"flang version 18.1.0", VendorFlangLLVM},
		{"IBM XL Fortran for Linux, V16.1", VendorIBMXL},
		{"Cray Fortran : Version 15.0.0", VendorCray},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			c := New("somefc", "", "", &bannerRunner{banner: tt.banner}, nil)
			if c.Vendor() != tt.want {
				t.Errorf("Vendor() = %v, want %v", c.Vendor(), tt.want)
			}
		})
	}
}

func TestIdentifyVendor_FromCommandName(t *testing.T) {
	tests := []struct {
		fc   string
		want Vendor
	}{
		{"gfortran", VendorGCC},
		{"/opt/intel/bin/ifort", VendorIntelClassic},
		{"ifx", VendorIntelLLVM},
		{"nagfor", VendorNAG},
		{"totally-custom-fc", VendorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.fc, func(t *testing.T) {
			c := New(tt.fc, "", "", &bannerRunner{}, nil)
			if c.Vendor() != tt.want {
				t.Errorf("Vendor() = %v, want %v", c.Vendor(), tt.want)
			}
		})
	}
}

func TestVendorPredicates(t *testing.T) {
	gnu := New("gfortran", "", "", &bannerRunner{banner: "GNU Fortran 13"}, nil)
	if !gnu.IsGNU() || gnu.IsIntel() {
		t.Errorf("gfortran predicates wrong: gnu=%v intel=%v", gnu.IsGNU(), gnu.IsIntel())
	}

	intel := New("ifx", "", "", &bannerRunner{}, nil)
	if intel.IsGNU() || !intel.IsIntel() {
		t.Errorf("ifx predicates wrong")
	}
	if intel.CC() != "icx" || intel.CXX() != "icpx" {
		t.Errorf("intel companions = %s/%s", intel.CC(), intel.CXX())
	}
}

func TestCommandAssembly(t *testing.T) {
	c := New("gfortran", "", "", &bannerRunner{banner: "GNU Fortran 13"}, nil)

	compile := c.FortranCompileCommand("src/m.f90", "build/m.f90.o", "-O3 -Jbuild")
	want := []string{"gfortran", "-O3", "-Jbuild", "-c", "src/m.f90", "-o", "build/m.f90.o"}
	if !reflect.DeepEqual(compile, want) {
		t.Errorf("FortranCompileCommand = %v, want %v", compile, want)
	}

	link := c.LinkCommand("build/app/demo", []string{"a.o", "libx.a"}, "-llapack")
	want = []string{"gfortran", "a.o", "libx.a", "-llapack", "-o", "build/app/demo"}
	if !reflect.DeepEqual(link, want) {
		t.Errorf("LinkCommand = %v, want %v", link, want)
	}

	shared := c.SharedLinkCommand("libx.so", []string{"a.o"}, "")
	if shared[1] != "-shared" {
		t.Errorf("SharedLinkCommand missing -shared: %v", shared)
	}
}

func TestModuleOutputFlag_PerVendor(t *testing.T) {
	tests := []struct {
		vendor Vendor
		want   []string
	}{
		{VendorGCC, []string{"-Jmods"}},
		{VendorIntelClassic, []string{"-module", "mods"}},
		{VendorNAG, []string{"-mdir", "mods"}},
		{VendorIBMXL, []string{"-qmoddir=mods"}},
	}

	for _, tt := range tests {
		t.Run(tt.vendor.String(), func(t *testing.T) {
			got := tt.vendor.moduleOutputFlag("mods")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("moduleOutputFlag = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultFlags_Profiles(t *testing.T) {
	release := VendorGCC.defaultFlags(ProfileRelease)
	if strings.Join(release, " ") != "-O3 -funroll-loops" {
		t.Errorf("gcc release flags = %v", release)
	}

	debug := VendorGCC.defaultFlags(ProfileDebug)
	joined := strings.Join(debug, " ")
	if !strings.Contains(joined, "-g") || !strings.Contains(joined, "-fcheck=bounds") {
		t.Errorf("gcc debug flags = %v", debug)
	}
}

func TestParseProfile(t *testing.T) {
	for spelling, want := range map[string]Profile{"": ProfileRelease, "release": ProfileRelease, "debug": ProfileDebug} {
		got, err := ParseProfile(spelling)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %v, %v", spelling, got, err)
		}
	}
	if _, err := ParseProfile("fastest"); err == nil {
		t.Errorf("ParseProfile accepted an unknown profile")
	}
}
