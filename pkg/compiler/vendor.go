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
	"path/filepath"
	"strings"

	"log/slog"
)

// Vendor identifies the Fortran toolchain family.
type Vendor int

const (
	// VendorUnknown is an unidentified toolchain; generic flags are used.
	VendorUnknown Vendor = iota
	// VendorGCC is GNU gfortran.
	VendorGCC
	// VendorIntelClassic is Intel ifort.
	VendorIntelClassic
	// VendorIntelLLVM is Intel ifx.
	VendorIntelLLVM
	// VendorNVHPC is the NVIDIA HPC SDK (former PGI).
	VendorNVHPC
	// VendorNAG is the NAG Fortran compiler.
	VendorNAG
	// VendorLFortran is LFortran.
	VendorLFortran
	// VendorFlangLLVM is LLVM flang.
	VendorFlangLLVM
	// VendorIBMXL is IBM XL Fortran.
	VendorIBMXL
	// VendorCray is the Cray/HPE Fortran compiler.
	VendorCray
)

// String returns the canonical vendor name.
func (v Vendor) String() string {
	switch v {
	case VendorGCC:
		return "gcc"
	case VendorIntelClassic:
		return "intel-classic"
	case VendorIntelLLVM:
		return "intel-llvm"
	case VendorNVHPC:
		return "nvhpc"
	case VendorNAG:
		return "nag"
	case VendorLFortran:
		return "lfortran"
	case VendorFlangLLVM:
		return "flang-llvm"
	case VendorIBMXL:
		return "ibm-xl"
	case VendorCray:
		return "cray"
	}
	return "unknown"
}

// versionPatterns maps version-banner substrings to vendors. Order matters:
// the Intel LLVM banner also contains "Intel(R) Fortran", so more specific
// patterns come first.
var versionPatterns = []struct {
	substr string
	vendor Vendor
}{
	{"GNU Fortran", VendorGCC},
	{"Intel(R) Fortran Compiler Classic", VendorIntelClassic},
	{"ifort", VendorIntelClassic},
	{"ifx", VendorIntelLLVM},
	{"Intel(R) Fortran Compiler", VendorIntelLLVM},
	{"nvfortran", VendorNVHPC},
	{"PGI Compilers", VendorNVHPC},
	{"NAG Fortran", VendorNAG},
	{"LFortran", VendorLFortran},
	{"flang", VendorFlangLLVM},
	{"f18 compiler", VendorFlangLLVM},
	{"IBM XL Fortran", VendorIBMXL},
	{"Cray Fortran", VendorCray},
}

// commandNames maps executable base names to vendors, the fallback when no
// version flag produces a recognizable banner.
var commandNames = map[string]Vendor{
	"gfortran":  VendorGCC,
	"ifort":     VendorIntelClassic,
	"ifx":       VendorIntelLLVM,
	"nvfortran": VendorNVHPC,
	"pgfortran": VendorNVHPC,
	"nagfor":    VendorNAG,
	"lfortran":  VendorLFortran,
	"flang":     VendorFlangLLVM,
	"flang-new": VendorFlangLLVM,
	"xlf90":     VendorIBMXL,
	"xlf":       VendorIBMXL,
	"ftn":       VendorCray,
	"crayftn":   VendorCray,
}

// identifyVendor invokes fc with version flags and matches the output,
// falling back to the executable name.
func identifyVendor(fc string, runner Runner, logger *slog.Logger) Vendor {
	for _, flag := range []string{"--version", "-version", "-V"} {
		out, err := runner.Output([]string{fc, flag})
		if err != nil {
			continue
		}
		for _, pattern := range versionPatterns {
			if strings.Contains(out, pattern.substr) {
				return pattern.vendor
			}
		}
	}

	base := filepath.Base(fc)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if vendor, ok := commandNames[base]; ok {
		return vendor
	}
	logger.Warn("compiler.identify.unknown", "fc", fc)
	return VendorUnknown
}

// cCompanion returns the vendor's usual C compiler.
func (v Vendor) cCompanion() string {
	switch v {
	case VendorGCC:
		return "gcc"
	case VendorIntelClassic:
		return "icc"
	case VendorIntelLLVM:
		return "icx"
	case VendorNVHPC:
		return "nvc"
	case VendorIBMXL:
		return "xlc"
	case VendorCray:
		return "cc"
	}
	return "cc"
}

// cxxCompanion returns the vendor's usual C++ compiler.
func (v Vendor) cxxCompanion() string {
	switch v {
	case VendorGCC:
		return "g++"
	case VendorIntelClassic:
		return "icpc"
	case VendorIntelLLVM:
		return "icpx"
	case VendorNVHPC:
		return "nvc++"
	case VendorIBMXL:
		return "xlc++"
	case VendorCray:
		return "CC"
	}
	return "c++"
}

// Feature is a per-package language feature that maps to vendor flags.
type Feature int

const (
	// FeatureFreeForm forces free source form.
	FeatureFreeForm Feature = iota
	// FeatureFixedForm forces fixed source form.
	FeatureFixedForm
	// FeatureImplicitNone disallows implicit typing.
	FeatureImplicitNone
	// FeatureImplicitExternalNone warns on implicit procedure interfaces.
	FeatureImplicitExternalNone
	// FeatureCPreprocess runs the C preprocessor over Fortran sources.
	FeatureCPreprocess
	// FeatureNoFortranMain links an executable whose main is C or C++.
	FeatureNoFortranMain
)

// moduleOutputFlag returns the tokens directing .mod output to dir.
func (v Vendor) moduleOutputFlag(dir string) []string {
	switch v {
	case VendorGCC:
		return []string{"-J" + dir}
	case VendorIntelClassic, VendorIntelLLVM, VendorNVHPC:
		return []string{"-module", dir}
	case VendorNAG:
		return []string{"-mdir", dir}
	case VendorIBMXL:
		return []string{"-qmoddir=" + dir}
	case VendorCray:
		return []string{"-J", dir}
	case VendorLFortran, VendorFlangLLVM:
		return []string{"-J", dir}
	}
	return []string{"-J" + dir}
}

// includeFlag returns the tokens adding dir to the search path.
func (v Vendor) includeFlag(dir string) []string {
	return []string{"-I" + dir}
}

// featureFlag returns the tokens enabling one feature, or nil when the
// vendor's default already matches.
func (v Vendor) featureFlag(feature Feature) []string {
	switch feature {
	case FeatureFreeForm:
		switch v {
		case VendorGCC:
			return []string{"-ffree-form"}
		case VendorIntelClassic, VendorIntelLLVM:
			return []string{"-free"}
		case VendorNVHPC:
			return []string{"-Mfree"}
		case VendorNAG:
			return []string{"-free"}
		}
	case FeatureFixedForm:
		switch v {
		case VendorGCC:
			return []string{"-ffixed-form"}
		case VendorIntelClassic, VendorIntelLLVM:
			return []string{"-fixed"}
		case VendorNVHPC:
			return []string{"-Mfixed"}
		case VendorNAG:
			return []string{"-fixed"}
		}
	case FeatureImplicitNone:
		switch v {
		case VendorGCC:
			return []string{"-fimplicit-none"}
		case VendorNAG:
			return []string{"-u"}
		case VendorNVHPC:
			return []string{"-Mdclchk"}
		}
	case FeatureImplicitExternalNone:
		switch v {
		case VendorGCC:
			return []string{"-Wimplicit-interface"}
		}
	case FeatureCPreprocess:
		switch v {
		case VendorGCC:
			return []string{"-cpp"}
		case VendorIntelClassic, VendorIntelLLVM:
			return []string{"-fpp"}
		case VendorNVHPC:
			return []string{"-Mpreprocess"}
		case VendorNAG:
			return []string{"-fpp"}
		}
	case FeatureNoFortranMain:
		switch v {
		case VendorIntelClassic, VendorIntelLLVM:
			return []string{"-nofor-main"}
		case VendorNVHPC:
			return []string{"-Mnomain"}
		}
	}
	return nil
}

// defaultFlags returns the vendor's default flag set for the profile.
func (v Vendor) defaultFlags(profile Profile) []string {
	if profile == ProfileDebug {
		switch v {
		case VendorGCC:
			return []string{"-Wall", "-Wextra", "-fcheck=bounds", "-fbacktrace", "-g"}
		case VendorIntelClassic, VendorIntelLLVM:
			return []string{"-warn", "all", "-check", "all", "-traceback", "-g"}
		case VendorNVHPC:
			return []string{"-Minform=inform", "-Mbounds", "-g"}
		case VendorNAG:
			return []string{"-C", "-g", "-gline"}
		}
		return []string{"-g"}
	}
	switch v {
	case VendorGCC:
		return []string{"-O3", "-funroll-loops"}
	case VendorIntelClassic, VendorIntelLLVM:
		return []string{"-O3"}
	case VendorNVHPC:
		return []string{"-O4", "-fast"}
	case VendorNAG:
		return []string{"-O4"}
	}
	return []string{"-O2"}
}
