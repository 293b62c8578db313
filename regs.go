// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package adc

// Reg is the byte offset of a 32-bit register within the mapped window.
//
// The window starts at the base of the L4_WKUP peripherals, so both the
// clock module (CM_WKUP) and the ADC_TSC registers are reachable from a
// single mapping.
type Reg uint32

const (
	// physical base and length of the mapped window
	memBase   = 0x44E00000
	memLength = 0xF000

	cmWkup = 0x0400
	adcTSC = 0xD000
)

// AM335x register offsets, relative to memBase.
// See the AM335x TRM, chapters 8 (PRCM) and 12 (Touchscreen Controller).
const (
	// CM_WKUP_ADC_TSC_CLKCTRL controls the ADC_TSC functional clock.
	RegClkCtrl Reg = cmWkup + 0xBC

	RegRevision  Reg = adcTSC + 0x00
	RegCtrl      Reg = adcTSC + 0x40
	RegADCStat   Reg = adcTSC + 0x44
	RegADCRange  Reg = adcTSC + 0x48
	RegClkDiv    Reg = adcTSC + 0x4C
	RegStepEn    Reg = adcTSC + 0x54
	RegFIFO0Cnt  Reg = adcTSC + 0xE4
	RegFIFO0Thr  Reg = adcTSC + 0xE8
	RegFIFO0Data Reg = adcTSC + 0x100

	regStepConfig1 Reg = adcTSC + 0x64
	regStepDelay1  Reg = adcTSC + 0x68
)

// Bit fields.
const (
	// CM_WKUP_ADC_TSC_CLKCTRL
	clkModuleEnable uint32 = 0x02

	// CTRL
	ctrlEnable          uint32 = 1 << 0
	ctrlStepIDTag       uint32 = 1 << 1
	ctrlWriteProtectOff uint32 = 1 << 2

	// STEPCONFIGn
	stepModeOneShot uint32 = 0x0
	stepAvg8        uint32 = 0x3 << 2
	stepSelInpShift        = 19

	// FIFOnCOUNT and FIFOnDATA
	fifoCountMask uint32 = 0x7F
	fifoDataMask  uint32 = 0xFFF
	fifoStepShift        = 16
	fifoStepMask  uint32 = 0xF << fifoStepShift
)

const (
	// MaxChannel is the highest analog input supported by the ADC_TSC.
	MaxChannel = 7

	// NumSteps is the number of step configurations used, one per channel.
	NumSteps = MaxChannel + 1

	// FIFODepth is the number of entries held by each FIFO.
	FIFODepth = 128

	// MaxCode is the largest 12-bit conversion result.
	MaxCode = 0xFFF
)

// RegStepConfig returns the STEPCONFIG register for step (1-8).
func RegStepConfig(step int) Reg {
	return regStepConfig1 + Reg(step-1)*8
}

// RegStepDelay returns the STEPDELAY register for step (1-8).
func RegStepDelay(step int) Reg {
	return regStepDelay1 + Reg(step-1)*8
}

// stepConfig returns the one-shot, 8 sample average, configuration for a
// step sampling the channel.
func stepConfig(ch int) uint32 {
	return stepModeOneShot | stepAvg8 | uint32(ch)<<stepSelInpShift
}

// stepMask returns the STEPENABLE bit for a channel.
// Step 0 is the touchscreen charge step so channel n is sampled by step n+1.
func stepMask(ch int) uint32 {
	return 1 << uint(ch+1)
}
