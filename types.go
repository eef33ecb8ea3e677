package dex

import (
	"fmt"
	"strings"
)

// Type descriptors use the JVM/Dalvik notation: I, J, Z, Ljava/lang/String;, [I ...

const (
	TypeVoid    = "V"
	TypeBoolean = "Z"
	TypeByte    = "B"
	TypeShort   = "S"
	TypeChar    = "C"
	TypeInt     = "I"
	TypeLong    = "J"
	TypeFloat   = "F"
	TypeDouble  = "D"

	TypeObject        = "Ljava/lang/Object;"
	TypeString        = "Ljava/lang/String;"
	TypeClass         = "Ljava/lang/Class;"
	TypeStringBuilder = "Ljava/lang/StringBuilder;"
	TypeThrowable     = "Ljava/lang/Throwable;"
)

// IsPrimitive reports whether t names a primitive type (not void).
func IsPrimitive(t string) bool {
	switch t {
	case TypeBoolean, TypeByte, TypeShort, TypeChar, TypeInt, TypeLong, TypeFloat, TypeDouble:
		return true
	}
	return false
}

// IsWide reports whether values of t take 64 bits.
func IsWide(t string) bool { return t == TypeLong || t == TypeDouble }

// IsReference reports whether t is a class or array type.
func IsReference(t string) bool {
	return strings.HasPrefix(t, "L") || strings.HasPrefix(t, "[")
}

// IsArray reports whether t is an array type.
func IsArray(t string) bool { return strings.HasPrefix(t, "[") }

// ComponentType returns the element type of an array type, or "" if t is not
// an array.
func ComponentType(t string) string {
	if !IsArray(t) {
		return ""
	}
	return t[1:]
}

// ArrayOf returns the array type with element type t.
func ArrayOf(t string) string { return "[" + t }

// JavaName converts a descriptor to a binary class name:
// Ljava/lang/String; -> java.lang.String, [I -> [I.
func JavaName(t string) string {
	if strings.HasPrefix(t, "L") && strings.HasSuffix(t, ";") {
		return strings.ReplaceAll(t[1:len(t)-1], "/", ".")
	}
	return strings.ReplaceAll(t, "/", ".")
}

// DescriptorOf converts a binary class name (as accepted by
// Class.forName) to a descriptor.
func DescriptorOf(name string) string {
	if strings.HasPrefix(name, "[") {
		return strings.ReplaceAll(name, ".", "/")
	}
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}

// SplitDescriptors splits a concatenated parameter list such as
// "ILjava/lang/String;[J" into individual descriptors.
func SplitDescriptors(s string) ([]string, error) {
	var out []string
	for i := 0; i < len(s); {
		start := i
		for i < len(s) && s[i] == '[' {
			i++
		}
		if i >= len(s) {
			return nil, fmt.Errorf("truncated array descriptor in %q", s)
		}
		switch s[i] {
		case 'L':
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				return nil, fmt.Errorf("unterminated class descriptor in %q", s)
			}
			i += end + 1
		case 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D':
			i++
		case 'V':
			if i != start {
				return nil, fmt.Errorf("array of void in %q", s)
			}
			i++
		default:
			return nil, fmt.Errorf("invalid descriptor %q in %q", s[i:i+1], s)
		}
		out = append(out, s[start:i])
	}
	return out, nil
}

// MethodRef is a parsed method reference LClass;->name(params)ret.
type MethodRef struct {
	Class  string
	Name   string
	Params []string
	Return string
}

// ParseMethodRef parses a method signature.
func ParseMethodRef(sig string) (MethodRef, error) {
	arrow := strings.Index(sig, "->")
	if arrow <= 0 {
		return MethodRef{}, fmt.Errorf("method reference %q: missing class", sig)
	}
	rest := sig[arrow+2:]
	open := strings.IndexByte(rest, '(')
	closing := strings.IndexByte(rest, ')')
	if open <= 0 || closing < open {
		return MethodRef{}, fmt.Errorf("method reference %q: malformed parameter list", sig)
	}
	params, err := SplitDescriptors(rest[open+1 : closing])
	if err != nil {
		return MethodRef{}, fmt.Errorf("method reference %q: %w", sig, err)
	}
	ret := rest[closing+1:]
	if rs, err := SplitDescriptors(ret); err != nil || len(rs) != 1 {
		return MethodRef{}, fmt.Errorf("method reference %q: bad return type %q", sig, ret)
	}
	return MethodRef{Class: sig[:arrow], Name: rest[:open], Params: params, Return: ret}, nil
}

// Descriptor returns the (params)ret part of the reference.
func (r MethodRef) Descriptor() string {
	return "(" + strings.Join(r.Params, "") + ")" + r.Return
}

func (r MethodRef) String() string {
	return r.Class + "->" + r.Name + r.Descriptor()
}

// FieldRef is a parsed field reference LClass;->name:T.
type FieldRef struct {
	Class string
	Name  string
	Type  string
}

// ParseFieldRef parses a field reference.
func ParseFieldRef(ref string) (FieldRef, error) {
	arrow := strings.Index(ref, "->")
	colon := strings.LastIndexByte(ref, ':')
	if arrow <= 0 || colon < arrow+3 || colon == len(ref)-1 {
		return FieldRef{}, fmt.Errorf("malformed field reference %q", ref)
	}
	return FieldRef{Class: ref[:arrow], Name: ref[arrow+2 : colon], Type: ref[colon+1:]}, nil
}

func (r FieldRef) String() string {
	return r.Class + "->" + r.Name + ":" + r.Type
}
