package flvio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const (
	numbermarker      = 0x00
	booleanmarker     = 0x01
	stringmarker      = 0x02
	objectmarker      = 0x03
	nullmarker        = 0x05
	undefinedmarker   = 0x06
	ecmaarraymarker   = 0x08
	objectendmarker   = 0x09
	longstringmarker  = 0x0c
	amf0ObjectEndSize = 3

	// 超过这个长度的字符串值用long string, key不能超过
	maxAMF0StringLen = 0xFFFF
)

// AMFKV 有序对象中的一个属性
type AMFKV struct {
	K string
	V interface{}
}

// AMFMap AMF0 Object(0x03), 属性保持写入顺序
type AMFMap []AMFKV

// AMFECMAArray AMF0 ECMA Array(0x08), 编码时带4字节属性个数
type AMFECMAArray []AMFKV

// AMFUndefined AMF0 Undefined(0x06)
type AMFUndefined struct{}

// Get 取属性值, 不存在返回nil
func (self AMFMap) Get(k string) interface{} {
	return amfkvs(self).get(k)
}

// Set 覆盖或追加属性
func (self *AMFMap) Set(k string, v interface{}) {
	*self = AMFMap(amfkvs(*self).set(k, v))
}

// GetString 取string属性
func (self AMFMap) GetString(k string) string {
	s, _ := self.Get(k).(string)
	return s
}

func (self AMFECMAArray) Get(k string) interface{} {
	return amfkvs(self).get(k)
}

func (self *AMFECMAArray) Set(k string, v interface{}) {
	*self = AMFECMAArray(amfkvs(*self).set(k, v))
}

type amfkvs []AMFKV

func (self amfkvs) get(k string) interface{} {
	for _, kv := range self {
		if kv.K == k {
			return kv.V
		}
	}
	return nil
}

func (self amfkvs) set(k string, v interface{}) amfkvs {
	for i := range self {
		if self[i].K == k {
			self[i].V = v
			return self
		}
	}
	return append(self, AMFKV{K: k, V: v})
}

func lenAMF0String(s string) int {
	return 2 + len(s)
}

func fillAMF0String(b []byte, s string) (n int) {
	binary.BigEndian.PutUint16(b, uint16(len(s)))
	n += 2
	n += copy(b[n:], s)
	return
}

func fillAMF0LongString(b []byte, s string) (n int) {
	binary.BigEndian.PutUint32(b, uint32(len(s)))
	n += 4
	n += copy(b[n:], s)
	return
}

func lenAMF0Props(kvs []AMFKV) (n int) {
	for _, kv := range kvs {
		n += lenAMF0String(kv.K)
		n += LenAMF0Val(kv.V)
	}
	n += amf0ObjectEndSize
	return
}

func fillAMF0Props(b []byte, kvs []AMFKV) (n int) {
	for _, kv := range kvs {
		n += fillAMF0String(b[n:], kv.K)
		n += FillAMF0Val(b[n:], kv.V)
	}
	b[n] = 0
	b[n+1] = 0
	b[n+2] = objectendmarker
	n += amf0ObjectEndSize
	return
}

func toFloat64(v interface{}) (f float64, ok bool) {
	ok = true
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	default:
		ok = false
	}
	return
}

// CheckAMF0Val 检查val能否无损编码: 只支持数字、bool、string、nil、AMFUndefined、AMFMap、AMFECMAArray,
// 属性名不能超过65535字节
func CheckAMF0Val(_val interface{}) error {
	if _, ok := toFloat64(_val); ok {
		return nil
	}
	switch val := _val.(type) {
	case nil, bool, string, AMFUndefined:
		return nil
	case AMFMap:
		return checkAMF0Props(val)
	case AMFECMAArray:
		return checkAMF0Props(val)
	}
	return errors.Errorf("amf0: unsupported type %T", _val)
}

func checkAMF0Props(kvs []AMFKV) error {
	for _, kv := range kvs {
		if len(kv.K) > maxAMF0StringLen {
			return errors.Errorf("amf0: key too long len=%d", len(kv.K))
		}
		if err := CheckAMF0Val(kv.V); err != nil {
			return errors.Wrapf(err, "key=%.32s", kv.K)
		}
	}
	return nil
}

// LenAMF0Val 计算编码后的字节数, 不支持的类型按Null计算
func LenAMF0Val(_val interface{}) (n int) {
	if _, ok := toFloat64(_val); ok {
		return 1 + 8
	}
	switch val := _val.(type) {
	case bool:
		n = 1 + 1
	case string:
		if len(val) > maxAMF0StringLen {
			n = 1 + 4 + len(val)
		} else {
			n = 1 + lenAMF0String(val)
		}
	case AMFMap:
		n = 1 + lenAMF0Props(val)
	case AMFECMAArray:
		n = 1 + 4 + lenAMF0Props(val)
	case AMFUndefined:
		n = 1
	default:
		n = 1
	}
	return
}

// FillAMF0Val 写入b, b的长度必须不小于LenAMF0Val(val)
func FillAMF0Val(b []byte, _val interface{}) (n int) {
	if f, ok := toFloat64(_val); ok {
		b[n] = numbermarker
		n++
		binary.BigEndian.PutUint64(b[n:], math.Float64bits(f))
		n += 8
		return
	}
	switch val := _val.(type) {
	case bool:
		b[n] = booleanmarker
		n++
		if val {
			b[n] = 1
		} else {
			b[n] = 0
		}
		n++

	case string:
		if len(val) > maxAMF0StringLen {
			b[n] = longstringmarker
			n++
			n += fillAMF0LongString(b[n:], val)
		} else {
			b[n] = stringmarker
			n++
			n += fillAMF0String(b[n:], val)
		}

	case AMFMap:
		b[n] = objectmarker
		n++
		n += fillAMF0Props(b[n:], val)

	case AMFECMAArray:
		b[n] = ecmaarraymarker
		n++
		binary.BigEndian.PutUint32(b[n:], uint32(len(val)))
		n += 4
		n += fillAMF0Props(b[n:], val)

	case AMFUndefined:
		b[n] = undefinedmarker
		n++

	default:
		b[n] = nullmarker
		n++
	}
	return
}

// MarshalAMF0 同EncodeAMF0, 但先用CheckAMF0Val检查每个值, 有不能编码的值时不输出任何字节
func MarshalAMF0(vals ...interface{}) ([]byte, error) {
	for i, v := range vals {
		if err := CheckAMF0Val(v); err != nil {
			return nil, errors.Wrapf(err, "amf0: value %d", i)
		}
	}
	return EncodeAMF0(vals...), nil
}

// EncodeAMF0 依次编码多个值到一块新分配的内存.
// 只用于确定可编码的值: 不支持的类型写成Null, 超长的属性名会写坏, 来源不可控时用MarshalAMF0
func EncodeAMF0(vals ...interface{}) []byte {
	size := 0
	for _, v := range vals {
		size += LenAMF0Val(v)
	}
	b := make([]byte, size)
	n := 0
	for _, v := range vals {
		n += FillAMF0Val(b[n:], v)
	}
	return b
}

type AMF0ParseError struct {
	Offset  int
	Message string
	Next    *AMF0ParseError
}

func (self *AMF0ParseError) Error() string {
	s := []string{}
	for p := self; p != nil; p = p.Next {
		s = append(s, fmt.Sprintf("%s:%d", p.Message, p.Offset))
	}
	return "amf0 parse error: " + fmt.Sprint(s)
}

func amf0ParseErr(message string, offset int, err error) error {
	next, _ := err.(*AMF0ParseError)
	return &AMF0ParseError{
		Offset:  offset,
		Message: message,
		Next:    next,
	}
}

func parseAMF0String(b []byte, offset int) (val string, n int, err error) {
	if len(b) < n+2 {
		err = amf0ParseErr("string.length.invalid", offset+n, err)
		return
	}
	length := int(binary.BigEndian.Uint16(b[n:]))
	n += 2
	if len(b) < n+length {
		err = amf0ParseErr("string.body.invalid", offset+n, err)
		return
	}
	val = string(b[n : n+length])
	n += length
	return
}

func parseAMF0Props(b []byte, offset int) (kvs []AMFKV, n int, err error) {
	kvs = []AMFKV{}
	for {
		if len(b) < n+2 {
			err = amf0ParseErr("object.key.invalid", offset+n, err)
			return
		}
		if binary.BigEndian.Uint16(b[n:]) == 0 {
			if len(b) < n+3 {
				err = amf0ParseErr("object.end.invalid", offset+n, err)
				return
			}
			if b[n+2] != objectendmarker {
				err = amf0ParseErr("object.end.marker", offset+n+2, err)
				return
			}
			n += amf0ObjectEndSize
			return
		}

		var key string
		var size int
		if key, size, err = parseAMF0String(b[n:], offset+n); err != nil {
			err = amf0ParseErr("object.key", offset+n, err)
			return
		}
		n += size

		var val interface{}
		if val, size, err = parseAMF0Val(b[n:], offset+n); err != nil {
			err = amf0ParseErr("object.val", offset+n, err)
			return
		}
		n += size

		kvs = append(kvs, AMFKV{K: key, V: val})
	}
}

// ParseAMF0Val 解析一个值, 返回值和消耗的字节数. 未知的marker返回错误
func ParseAMF0Val(b []byte) (val interface{}, n int, err error) {
	return parseAMF0Val(b, 0)
}

func parseAMF0Val(b []byte, offset int) (val interface{}, n int, err error) {
	if len(b) < n+1 {
		err = amf0ParseErr("marker", offset+n, err)
		return
	}

	marker := b[n]
	n++

	switch marker {
	case numbermarker:
		if len(b) < n+8 {
			err = amf0ParseErr("number", offset+n, err)
			return
		}
		val = math.Float64frombits(binary.BigEndian.Uint64(b[n:]))
		n += 8

	case booleanmarker:
		if len(b) < n+1 {
			err = amf0ParseErr("boolean", offset+n, err)
			return
		}
		val = b[n] != 0
		n++

	case stringmarker:
		var s string
		var size int
		if s, size, err = parseAMF0String(b[n:], offset+n); err != nil {
			return
		}
		val = s
		n += size

	case longstringmarker:
		if len(b) < n+4 {
			err = amf0ParseErr("longstring.length.invalid", offset+n, err)
			return
		}
		length := int(binary.BigEndian.Uint32(b[n:]))
		n += 4
		if length < 0 || len(b)-n < length {
			err = amf0ParseErr("longstring.body.invalid", offset+n, err)
			return
		}
		val = string(b[n : n+length])
		n += length

	case objectmarker:
		var kvs []AMFKV
		var size int
		if kvs, size, err = parseAMF0Props(b[n:], offset+n); err != nil {
			return
		}
		val = AMFMap(kvs)
		n += size

	case nullmarker:
		val = nil

	case undefinedmarker:
		val = AMFUndefined{}

	case ecmaarraymarker:
		if len(b) < n+4 {
			err = amf0ParseErr("array.count", offset+n, err)
			return
		}
		n += 4
		var kvs []AMFKV
		var size int
		if kvs, size, err = parseAMF0Props(b[n:], offset+n); err != nil {
			return
		}
		val = AMFECMAArray(kvs)
		n += size

	default:
		err = amf0ParseErr(fmt.Sprintf("invalidmarker=0x%02x", marker), offset+n-1, err)
		return
	}

	return
}

// ParseAMF0Vals 解析连续的多个值直到b耗尽
func ParseAMF0Vals(b []byte) (vals []interface{}, err error) {
	n := 0
	for n < len(b) {
		var val interface{}
		var size int
		if val, size, err = parseAMF0Val(b[n:], n); err != nil {
			return
		}
		n += size
		vals = append(vals, val)
	}
	return
}
