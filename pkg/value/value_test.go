package value

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindBool, "bool"},
		{KindInt32, "i32"},
		{KindUint32, "u32"},
		{KindInt64, "i64"},
		{KindUint64, "u64"},
		{KindFloat32, "f32"},
		{KindFloat64, "f64"},
		{KindString, "string"},
		{Kind(99), "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if !tt.kind.IsValid() {
				return
			}
			parsed, err := ParseKind(tt.want)
			if err != nil {
				t.Fatalf("ParseKind(%q) error = %v", tt.want, err)
			}
			if parsed != tt.kind {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.want, parsed, tt.kind)
			}
		})
	}

	if _, err := ParseKind("complex128"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("ParseKind(complex128) error = %v, want ErrInvalidKind", err)
	}
}

func TestAsKindMismatch(t *testing.T) {
	v := Of(int32(-10))

	n, err := As[int32](v)
	require.NoError(t, err)
	assert.Equal(t, int32(-10), n)

	_, err = As[int64](v)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = As[string](v)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = AsArray[int32](v)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestBoolStringRules(t *testing.T) {
	s, err := As[string](Bool(true))
	require.NoError(t, err)
	assert.Equal(t, "true", s)

	for _, in := range []string{"true", "TRUE", "1", "on", "Yes"} {
		b, err := As[bool](String(in))
		require.NoError(t, err, in)
		assert.True(t, b, in)
	}
	for _, in := range []string{"false", "0", "OFF", "no"} {
		b, err := As[bool](String(in))
		require.NoError(t, err, in)
		assert.False(t, b, in)
	}

	_, err = As[bool](String("maybe"))
	assert.ErrorIs(t, err, ErrSyntax)

	arr, err := AsArray[string](ArrayOf([]bool{true, false}))
	require.NoError(t, err)
	assert.Equal(t, []string{"true", "false"}, arr)
}

func TestSize(t *testing.T) {
	assert.Equal(t, 1, Float64(1.5).Size())
	assert.False(t, Float64(1.5).IsArray())
	assert.Equal(t, 3, ArrayOf([]uint32{1, 2, 3}).Size())
	assert.True(t, ArrayOf([]uint32{}).IsArray())
	assert.Equal(t, 0, Value{}.Size())
}

func TestArrayOfCopies(t *testing.T) {
	src := []int64{1, 2, 3}
	v := ArrayOf(src)
	src[0] = 99

	got, err := AsArray[int64](v)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got)

	got[1] = 42
	again, _ := AsArray[int64](v)
	assert.Equal(t, []int64{1, 2, 3}, again)
}

func TestSliceSpliceResize(t *testing.T) {
	v := ArrayOf([]int32{10, 20, 30, 40})

	s, err := v.Slice(1, 2)
	require.NoError(t, err)
	assert.True(t, Equal(s, ArrayOf([]int32{20, 30})))

	_, err = v.Slice(3, 2)
	assert.ErrorIs(t, err, ErrOutOfRange)

	spliced, err := v.Splice(2, ArrayOf([]int32{7, 8}))
	require.NoError(t, err)
	assert.Equal(t, "[10, 20, 7, 8]", spliced.String())
	assert.Equal(t, "[10, 20, 30, 40]", v.String())

	one, err := v.Splice(0, Int32(-1))
	require.NoError(t, err)
	assert.Equal(t, "[-1, 20, 30, 40]", one.String())

	_, err = v.Splice(3, ArrayOf([]int32{1, 2}))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = v.Splice(0, Int64(1))
	assert.ErrorIs(t, err, ErrKindMismatch)

	grown, err := v.Resize(6)
	require.NoError(t, err)
	assert.Equal(t, "[10, 20, 30, 40, 0, 0]", grown.String())

	shrunk, err := v.Resize(1)
	require.NoError(t, err)
	assert.Equal(t, "[10]", shrunk.String())

	empty, err := v.Resize(0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Size())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
		err  error
	}{
		{"i32 less", Int32(-5), Int32(3), -1, nil},
		{"mixed sign", Int32(-1), Uint64(1 << 63), -1, nil},
		{"u64 vs i64 equal", Uint64(7), Int64(7), 0, nil},
		{"big unsigned", Uint64(1<<64 - 1), Int64(1<<63 - 1), 1, nil},
		{"float vs int", Float64(2.5), Int32(2), 1, nil},
		{"f32 vs f64", Float32(0.5), Float64(0.5), 0, nil},
		{"strings", String("abc"), String("abd"), -1, nil},
		{"bool equal", Bool(true), Bool(true), 0, nil},
		{"bool unequal", Bool(true), Bool(false), 0, ErrIncomparable},
		{"string vs int", String("1"), Int32(1), 0, ErrIncomparable},
		{"array", ArrayOf([]int32{1}), Int32(1), 0, ErrIncomparable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Compare() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compare() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		kind Kind
		in   string
		want Value
	}{
		{KindBool, "on", Bool(true)},
		{KindInt32, "-80", Int32(-80)},
		{KindInt32, "0x10", Int32(16)},
		{KindUint32, "4294967295", Uint32(4294967295)},
		{KindInt64, "-9223372036854775808", Int64(-9223372036854775808)},
		{KindUint64, "0b101", Uint64(5)},
		{KindFloat32, "1.5", Float32(1.5)},
		{KindFloat64, "-2e3", Float64(-2000)},
		{KindString, " keep spaces ", String(" keep spaces ")},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.in, func(t *testing.T) {
			got, err := Parse(tt.kind, tt.in)
			require.NoError(t, err)
			assert.True(t, Equal(got, tt.want), "got %v want %v", got, tt.want)
		})
	}

	_, err := Parse(KindInt32, "4294967296")
	assert.ErrorIs(t, err, ErrSyntax)
	_, err = Parse(KindUint32, "-1")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParseArrayStrings(t *testing.T) {
	v, err := ParseArray(KindFloat64, []string{"1", "2.5", "-3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2.5", "-3"}, v.Strings())
	assert.Equal(t, "[1, 2.5, -3]", v.String())

	_, err = ParseArray(KindUint32, []string{"1", "x"})
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestConvert(t *testing.T) {
	v, err := Convert(Int64(1), KindInt32)
	require.NoError(t, err)
	assert.True(t, Equal(v, Int32(1)))

	_, err = Convert(Int64(1<<40), KindInt32)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = Convert(Int32(-1), KindUint64)
	assert.ErrorIs(t, err, ErrOutOfRange)

	f, err := Convert(Int32(3), KindFloat64)
	require.NoError(t, err)
	assert.True(t, Equal(f, Float64(3)))

	_, err = Convert(Float64(1.5), KindInt32)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = Convert(String("1"), KindInt32)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(7)
	require.NoError(t, err)
	assert.Equal(t, KindInt64, v.Kind())

	v, err = FromAny([]string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, v.IsArray())
	assert.Equal(t, 2, v.Size())

	_, err = FromAny(complex(1, 2))
	assert.ErrorIs(t, err, ErrInvalidKind)
}
