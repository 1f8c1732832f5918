// Package stats reduces per-item conversion results into batch statistics.
package stats

import "sort"

// Result is the size outcome of one item. Failed items carry no sizes.
type Result struct {
	OriginalSize     int64
	OutputSize       int64
	ReductionPercent float64
	Success          bool
}

// Batch summarizes a finished batch. SuccessfulFiles + FailedFiles always
// equals TotalFiles; items never attempted are not counted.
type Batch struct {
	TotalFiles              int     `json:"total_files" yaml:"total_files" parquet:"total_files"`
	ProcessedFiles          int     `json:"processed_files" yaml:"processed_files" parquet:"processed_files"`
	SuccessfulFiles         int     `json:"successful_files" yaml:"successful_files" parquet:"successful_files"`
	FailedFiles             int     `json:"failed_files" yaml:"failed_files" parquet:"failed_files"`
	TotalOriginalSizeBytes  int64   `json:"total_original_size" yaml:"total_original_size" parquet:"total_original_size"`
	TotalOutputSizeBytes    int64   `json:"total_output_size" yaml:"total_output_size" parquet:"total_output_size"`
	OverallReductionPercent float64 `json:"overall_reduction_percent" yaml:"overall_reduction_percent" parquet:"overall_reduction_percent"`
	AverageReductionPercent float64 `json:"average_reduction_percent" yaml:"average_reduction_percent" parquet:"average_reduction_percent"`
	MedianReductionPercent  float64 `json:"median_reduction_percent" yaml:"median_reduction_percent" parquet:"median_reduction_percent"`
}

// BytesSaved is the difference between original and output totals.
func (b Batch) BytesSaved() int64 {
	return b.TotalOriginalSizeBytes - b.TotalOutputSizeBytes
}

// Reduction returns 1 - output/original as a percentage, or 0 when the
// original size is zero.
func Reduction(originalSize, outputSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return (float64(originalSize) - float64(outputSize)) / float64(originalSize) * 100
}

// Calculate computes batch statistics. Sizes and reduction metrics are taken
// from successful results only; with no successes every percentage is 0.
func Calculate(results []Result) Batch {
	batch := Batch{
		TotalFiles:     len(results),
		ProcessedFiles: len(results),
	}

	reductions := make([]float64, 0, len(results))
	for _, res := range results {
		if !res.Success {
			batch.FailedFiles++
			continue
		}
		batch.SuccessfulFiles++
		batch.TotalOriginalSizeBytes += res.OriginalSize
		batch.TotalOutputSizeBytes += res.OutputSize
		reductions = append(reductions, res.ReductionPercent)
	}

	batch.OverallReductionPercent = Reduction(batch.TotalOriginalSizeBytes, batch.TotalOutputSizeBytes)
	batch.AverageReductionPercent = mean(reductions)
	batch.MedianReductionPercent = median(reductions)
	return batch
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
