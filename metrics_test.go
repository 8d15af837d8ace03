package hdrtools

import (
	"math"
	"testing"
)

func TestPSNR(t *testing.T) {
	ref := yuvFrame(4, 4, ChromaFormat420, StorageFloat, 0)
	ref.Fill(0, 0.5)
	res, err := PSNR(ref, ref, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res != [3]float64{MaxPSNR, MaxPSNR, MaxPSNR} {
		t.Fatalf("identical frames: %v", res)
	}

	a := yuvFrame(2, 2, ChromaFormat400, StorageUint8, 8)
	b := yuvFrame(2, 2, ChromaFormat400, StorageUint8, 8)
	b.ImgComp[0][3] = 10
	res, err = PSNR(a, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := 10 * math.Log10(255*255*4/100.0); !near(res[0], want, 1e-9) || res[1] != 0 {
		t.Fatalf("psnr = %v, want %v", res, want)
	}

	res, err = PSNR(a, b, 1023)
	if err != nil {
		t.Fatal(err)
	}
	if want := 10 * math.Log10(1023*1023*4/100.0); !near(res[0], want, 1e-9) {
		t.Fatalf("psnr at peak 1023 = %v, want %v", res[0], want)
	}
}

func TestPSNRMismatch(t *testing.T) {
	ref := yuvFrame(4, 4, ChromaFormat420, StorageUint16, 10)
	if _, err := PSNR(ref, yuvFrame(4, 2, ChromaFormat420, StorageUint16, 10), 0); err == nil {
		t.Fatal("size mismatch accepted")
	}
	if _, err := PSNR(ref, yuvFrame(4, 4, ChromaFormat420, StorageFloat, 0), 0); err == nil {
		t.Fatal("storage mismatch accepted")
	}
}
