package tuner

import (
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	resources, err := Detect()
	if err != nil {
		t.Fatalf("Detect() returned error: %v", err)
	}

	if resources.CPUCores != runtime.NumCPU() {
		t.Errorf("CPUCores = %d, want %d (runtime.NumCPU())", resources.CPUCores, runtime.NumCPU())
	}
	if resources.TotalRAM <= 0 {
		t.Errorf("TotalRAM = %d, want > 0", resources.TotalRAM)
	}
	if resources.AvailableRAM < 0 || resources.AvailableRAM > resources.TotalRAM {
		t.Errorf("AvailableRAM = %d, want within [0, %d]", resources.AvailableRAM, resources.TotalRAM)
	}
}

func TestCalculate(t *testing.T) {
	const gib = int64(1) << 30

	tests := []struct {
		name       string
		resources  SystemResources
		wantWalk   int
		wantHash   int
		wantBuffer int
	}{
		{
			name:       "single core small machine",
			resources:  SystemResources{CPUCores: 1, AvailableRAM: 256 << 20},
			wantWalk:   minWalkWorkers,
			wantHash:   minHashWorkers,
			wantBuffer: 1024 * 1024,
		},
		{
			name:       "eight cores",
			resources:  SystemResources{CPUCores: 8, AvailableRAM: 8 * gib},
			wantWalk:   8,
			wantHash:   16,
			wantBuffer: 1024 * 1024,
		},
		{
			name:       "many cores little memory",
			resources:  SystemResources{CPUCores: 128, AvailableRAM: 64 << 20},
			wantWalk:   maxWalkWorkers,
			wantHash:   maxHashWorkers,
			wantBuffer: minBufferSize,
		},
		{
			name:       "no memory information",
			resources:  SystemResources{CPUCores: 4},
			wantWalk:   8,
			wantHash:   8,
			wantBuffer: minBufferSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.resources)
			if got.WalkWorkers != tt.wantWalk {
				t.Errorf("WalkWorkers = %d, want %d", got.WalkWorkers, tt.wantWalk)
			}
			if got.HashWorkers != tt.wantHash {
				t.Errorf("HashWorkers = %d, want %d", got.HashWorkers, tt.wantHash)
			}
			if got.BufferSize != tt.wantBuffer {
				t.Errorf("BufferSize = %d, want %d", got.BufferSize, tt.wantBuffer)
			}
		})
	}
}

func TestCalculateBufferSize_PowerOfTwo(t *testing.T) {
	for _, ram := range []int64{0, 1 << 20, 300 << 20, 3 << 30, 1 << 40} {
		size := calculateBufferSize(ram, 4)
		if size < minBufferSize || size > maxBufferSize {
			t.Errorf("calculateBufferSize(%d) = %d, out of bounds", ram, size)
		}
		if size&(size-1) != 0 {
			t.Errorf("calculateBufferSize(%d) = %d, not a power of two", ram, size)
		}
	}
}

func TestCalculateWithOverrides(t *testing.T) {
	resources := SystemResources{CPUCores: 4, AvailableRAM: 1 << 30}

	got := CalculateWithOverrides(resources, 3, 4096)
	if got.HashWorkers != 3 || got.BufferSize != 4096 {
		t.Errorf("overrides not applied: %+v", got)
	}

	got = CalculateWithOverrides(resources, 1000, 0)
	if got.HashWorkers != maxHashWorkers {
		t.Errorf("HashWorkers = %d, want cap %d", got.HashWorkers, maxHashWorkers)
	}

	if CalculateWithOverrides(resources, 0, 0) != Calculate(resources) {
		t.Error("zero overrides should match Calculate")
	}
}
