package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/Yafet01/drug-prescription-app/validation"
)

// ============================================================================
// V1 ENDPOINT BENCHMARKS
// ============================================================================

// BenchmarkForecastSingleMedicine benchmarks a one-medicine forecast (13 model calls)
func BenchmarkForecastSingleMedicine(b *testing.B) {
	f := newFixture(monthModel{})
	f.handler.recorder = nil

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/v1/forecast?year=2025&month=3&medicine=Aspirin", nil)
		f.handler.ServeForecastV1(rr, req)
	}
}

// BenchmarkForecastFullVocabulary benchmarks a forecast over every known medicine
func BenchmarkForecastFullVocabulary(b *testing.B) {
	f := newFixture(monthModel{})
	f.handler.recorder = nil
	f.handler.validator = validation.NewRequestValidator(validation.DefaultMaxMedicines)

	const query = "/v1/forecast?year=2025&month=3&medicine=Aspirin,Ibuprofen,Artemether,Paracetamol,Diclofenac," +
		"Amoxicillin,Azithromycin,Metformin,Salbutamol,Omeprazole,Cetirizine"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", query, nil)
		f.handler.ExportForecastV1(rr, req)
	}
}

// BenchmarkMedicines benchmarks the vocabulary listing
func BenchmarkMedicines(b *testing.B) {
	f := newFixture(monthModel{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/v1/medicines", nil)
		f.handler.ServeMedicinesV1(rr, req)
	}
}
