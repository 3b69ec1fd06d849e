package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-xray-sdk-go/xray"
)

func TestBeginSubsegment_WithoutParent(t *testing.T) {
	ctx := context.Background()

	got, seg := BeginSubsegment(ctx, "NoParent")
	if seg != nil {
		t.Errorf("BeginSubsegment() segment = %v, want nil", seg)
	}
	if got != ctx {
		t.Error("BeginSubsegment() should return the given context")
	}

	// nilのセグメントに対する操作はパニックしない
	AddMetadata(seg, "key", "value")
	CloseSegment(seg, errors.New("ignored"))
}

func TestBeginSubsegment_WithParent(t *testing.T) {
	ctx, root := xray.BeginSegment(context.Background(), "TestBeginSubsegment_WithParent")
	defer root.Close(nil)

	_, seg := BeginSubsegment(ctx, "Child")
	if seg == nil {
		t.Fatal("BeginSubsegment() segment = nil, want subsegment")
	}
	AddMetadata(seg, "count", 2)
	CloseSegment(seg, nil)
}
