package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"go.viam.com/test"

	"github.com/BryanSouza91/QuadFC/dshot"
)

type fakeController struct {
	armed   bool
	input   io.ByteReader
	calls   []string
	verbose int
	err     error
}

func newFake(input string) *fakeController {
	return &fakeController{input: bytes.NewReader([]byte(input))}
}

func (f *fakeController) record(format string, args ...interface{}) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeController) Armed() bool { return f.armed }

func (f *fakeController) Beacon(ctx context.Context, n int, target dshot.Selector) error {
	return f.record("beacon %d %s", n, target)
}

func (f *fakeController) SetSpinDirection(ctx context.Context, target dshot.Selector, reversed bool) error {
	return f.record("direction %s %t", target, reversed)
}

func (f *fakeController) Set3DMode(ctx context.Context, target dshot.Selector, on bool) error {
	return f.record("3d %s %t", target, on)
}

func (f *fakeController) SetLED(ctx context.Context, target dshot.Selector, led int, on bool) error {
	return f.record("led %s %d %t", target, led, on)
}

func (f *fakeController) MotorStop(ctx context.Context) error {
	return f.record("stop")
}

func (f *fakeController) Verbose() { f.verbose++ }

func (f *fakeController) ReadByte() (byte, error) { return f.input.ReadByte() }

func TestRunDispatch(t *testing.T) {
	f := newFake("B23DlR3A1L1" + "21" + "S" + "V" + "?" + "Dbn")
	test.That(t, Run(context.Background(), f), test.ShouldBeNil)
	test.That(t, f.calls, test.ShouldResemble, []string{
		"beacon 3 front-right",
		"direction left true",
		"3d all true",
		"led front-left 2 true",
		"stop",
	})
	test.That(t, f.verbose, test.ShouldEqual, 1)
}

func TestRunIgnoresNoise(t *testing.T) {
	f := newFake("xyz\r\n3f0")
	test.That(t, Run(context.Background(), f), test.ShouldBeNil)
	test.That(t, f.calls, test.ShouldResemble, []string{"3d front false"})
}

func TestRunKeepsGoingAfterErrors(t *testing.T) {
	f := newFake("B19" + "S")
	f.err = errors.New("boom")
	test.That(t, Run(context.Background(), f), test.ShouldBeNil)
	test.That(t, f.calls, test.ShouldResemble, []string{"stop"})
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFake("S")
	test.That(t, errors.Is(Run(ctx, f), context.Canceled), test.ShouldBeTrue)
	test.That(t, f.calls, test.ShouldBeEmpty)
}

func TestExecArmed(t *testing.T) {
	f := newFake("")
	f.armed = true

	err := Exec(context.Background(), f, DirectionCommand, []byte("AN"))
	test.That(t, err, test.ShouldWrap, ErrArmed)
	test.That(t, Exec(context.Background(), f, StopCommand, nil), test.ShouldBeNil)
	test.That(t, Exec(context.Background(), f, VerboseCommand, nil), test.ShouldBeNil)
	test.That(t, f.calls, test.ShouldResemble, []string{"stop"})
}

func TestExecInvalidInput(t *testing.T) {
	for _, tc := range []struct {
		cmd *Command
		in  string
	}{
		{BeaconCommand, "A0"},
		{BeaconCommand, "A6"},
		{BeaconCommand, "5"},
		{BeaconCommand, "x1"},
		{DirectionCommand, "1X"},
		{Mode3DCommand, "12"},
		{LEDCommand, "A40"},
		{LEDCommand, "A0x"},
		{StopCommand, "1"},
	} {
		t.Run(string(tc.cmd.Flag)+tc.in, func(t *testing.T) {
			f := newFake("")
			err := Exec(context.Background(), f, tc.cmd, []byte(tc.in))
			test.That(t, err, test.ShouldWrap, ErrInvalidInput)
			test.That(t, f.calls, test.ShouldBeEmpty)
		})
	}
}

func TestLookup(t *testing.T) {
	for _, flag := range []byte("BD3LSV?") {
		cmd, ok := Lookup(flag)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, cmd.Flag, test.ShouldEqual, flag)
		test.That(t, cmd.Description, test.ShouldNotBeEmpty)
	}
	_, ok := Lookup('Z')
	test.That(t, ok, test.ShouldBeFalse)
}

func TestParseTarget(t *testing.T) {
	for in, want := range map[byte]dshot.Selector{
		'1': dshot.SelectFrontLeft,
		'2': dshot.SelectFrontRight,
		'3': dshot.SelectBackLeft,
		'4': dshot.SelectBackRight,
		'A': dshot.All,
		'l': dshot.LeftSide,
		'r': dshot.RightSide,
		'f': dshot.FrontSide,
		'b': dshot.BackSide,
	} {
		got, err := parseTarget(in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}
	_, err := parseTarget('5')
	test.That(t, err, test.ShouldNotBeNil)
}
