package sensor

import (
	"fmt"
	"time"

	"github.com/sweeney/dust-collector/internal/i2c"
)

// ADS1115 register map and config fields (single-shot, single-ended).
const (
	adsRegConversion = 0x00
	adsRegConfig     = 0x01

	adsConfigOS         = 0x8000 // write: start conversion; read: conversion done
	adsConfigMuxSingle  = 0x4000 // single-ended base, channel in bits 13:12
	adsConfigPGA4V      = 0x0200 // ±4.096V full scale
	adsConfigModeSingle = 0x0100
	adsConfigRate128    = 0x0080 // 128 SPS
	adsConfigCompOff    = 0x0003

	adsFullScaleVolts = 4.096
	adsConvertTimeout = 50 * time.Millisecond
	adsConvertPoll    = 2 * time.Millisecond
)

// ADS1115Channel binds a machine to one single-ended ADC input (0..3).
type ADS1115Channel struct {
	Machine string
	Channel int
}

// ADS1115 samples machine currents through an ADS1115 on the I2C bus.
type ADS1115 struct {
	bus      i2c.Bus
	addr     uint16
	channels []ADS1115Channel
}

// NewADS1115 creates a reader for the given channel map.
func NewADS1115(bus i2c.Bus, addr uint16, channels []ADS1115Channel) (*ADS1115, error) {
	for _, ch := range channels {
		if ch.Channel < 0 || ch.Channel > 3 {
			return nil, fmt.Errorf("ads1115: channel must be 0..3 (got %d for %s)", ch.Channel, ch.Machine)
		}
	}
	return &ADS1115{bus: bus, addr: addr, channels: channels}, nil
}

// Read performs one single-shot conversion per configured channel.
func (a *ADS1115) Read() ([]Reading, error) {
	out := make([]Reading, 0, len(a.channels))
	for _, ch := range a.channels {
		v, err := a.convert(ch.Channel)
		if err != nil {
			return nil, fmt.Errorf("ads1115 %s (ch %d): %w", ch.Machine, ch.Channel, err)
		}
		out = append(out, Reading{Machine: ch.Machine, Value: v})
	}
	return out, nil
}

func (a *ADS1115) convert(channel int) (float64, error) {
	cfg := uint16(adsConfigOS | adsConfigMuxSingle | channel<<12 |
		adsConfigPGA4V | adsConfigModeSingle | adsConfigRate128 | adsConfigCompOff)
	if err := a.bus.WriteWordReg(a.addr, adsRegConfig, cfg); err != nil {
		return 0, fmt.Errorf("start conversion: %w", err)
	}

	// Poll the OS bit until the conversion completes.
	deadline := time.Now().Add(adsConvertTimeout)
	for {
		status, err := a.bus.ReadWordReg(a.addr, adsRegConfig)
		if err != nil {
			return 0, fmt.Errorf("poll conversion: %w", err)
		}
		if status&adsConfigOS != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("conversion timed out after %v", adsConvertTimeout)
		}
		time.Sleep(adsConvertPoll)
	}

	raw, err := a.bus.ReadWordReg(a.addr, adsRegConversion)
	if err != nil {
		return 0, fmt.Errorf("read conversion: %w", err)
	}
	return float64(int16(raw)) * adsFullScaleVolts / 32768.0, nil
}

// Close is a no-op; the underlying bus is shared and closed by its owner.
func (a *ADS1115) Close() error { return nil }
