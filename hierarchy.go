package dex

// Exception types raised by the interpreter itself.
const (
	ExcArithmetic         = "Ljava/lang/ArithmeticException;"
	ExcNullPointer        = "Ljava/lang/NullPointerException;"
	ExcClassCast          = "Ljava/lang/ClassCastException;"
	ExcArrayIndex         = "Ljava/lang/ArrayIndexOutOfBoundsException;"
	ExcStringIndex        = "Ljava/lang/StringIndexOutOfBoundsException;"
	ExcNegativeArraySize  = "Ljava/lang/NegativeArraySizeException;"
	ExcArrayStore         = "Ljava/lang/ArrayStoreException;"
	ExcClassNotFound      = "Ljava/lang/ClassNotFoundException;"
	ExcNumberFormat       = "Ljava/lang/NumberFormatException;"
	ExcIllegalMonitor     = "Ljava/lang/IllegalMonitorStateException;"
	ExcInitializerError   = "Ljava/lang/ExceptionInInitializerError;"
	ExcRuntime            = "Ljava/lang/RuntimeException;"
	ExcException          = "Ljava/lang/Exception;"
	ExcError              = "Ljava/lang/Error;"
	ExcStackOverflowError = "Ljava/lang/StackOverflowError;"
)

// builtinSupers is the slice of the platform class hierarchy the
// interpreter needs to match handlers and casts without a full runtime.
var builtinSupers = map[string]string{
	TypeThrowable:                                 TypeObject,
	ExcException:                                  TypeThrowable,
	ExcError:                                      TypeThrowable,
	ExcRuntime:                                    ExcException,
	ExcArithmetic:                                 ExcRuntime,
	ExcNullPointer:                                ExcRuntime,
	ExcClassCast:                                  ExcRuntime,
	"Ljava/lang/IllegalArgumentException;":        ExcRuntime,
	"Ljava/lang/IllegalStateException;":           ExcRuntime,
	"Ljava/lang/IndexOutOfBoundsException;":       ExcRuntime,
	ExcArrayIndex:                                 "Ljava/lang/IndexOutOfBoundsException;",
	ExcStringIndex:                                "Ljava/lang/IndexOutOfBoundsException;",
	ExcNegativeArraySize:                          ExcRuntime,
	ExcArrayStore:                                 ExcRuntime,
	ExcNumberFormat:                               "Ljava/lang/IllegalArgumentException;",
	"Ljava/lang/UnsupportedOperationException;":   ExcRuntime,
	ExcIllegalMonitor:                             ExcRuntime,
	"Ljava/lang/ReflectiveOperationException;":    ExcException,
	ExcClassNotFound:                              "Ljava/lang/ReflectiveOperationException;",
	"Ljava/lang/VirtualMachineError;":             ExcError,
	ExcStackOverflowError:                         "Ljava/lang/VirtualMachineError;",
	"Ljava/lang/OutOfMemoryError;":                "Ljava/lang/VirtualMachineError;",
	"Ljava/lang/LinkageError;":                    ExcError,
	ExcInitializerError:                           "Ljava/lang/LinkageError;",
	"Ljava/lang/NoClassDefFoundError;":            "Ljava/lang/LinkageError;",
	"Ljava/io/IOException;":                       ExcException,
	TypeString:                                    TypeObject,
	TypeClass:                                     TypeObject,
	"Ljava/lang/AbstractStringBuilder;":           TypeObject,
	TypeStringBuilder:                             "Ljava/lang/AbstractStringBuilder;",
	"Ljava/lang/Number;":                          TypeObject,
	"Ljava/lang/Integer;":                         "Ljava/lang/Number;",
	"Ljava/lang/Long;":                            "Ljava/lang/Number;",
	"Ljava/lang/Math;":                            TypeObject,
	"Ljava/lang/CharSequence;":                    TypeObject,
	"Ljava/lang/Comparable;":                      TypeObject,
	"Ljava/lang/Appendable;":                      TypeObject,
	"Ljava/lang/Cloneable;":                       TypeObject,
	"Ljava/io/Serializable;":                      TypeObject,
}

var builtinInterfaces = map[string][]string{
	TypeString:            {"Ljava/lang/CharSequence;", "Ljava/lang/Comparable;", "Ljava/io/Serializable;"},
	TypeStringBuilder:     {"Ljava/lang/CharSequence;", "Ljava/lang/Appendable;", "Ljava/io/Serializable;"},
	"Ljava/lang/Integer;": {"Ljava/lang/Comparable;"},
	"Ljava/lang/Long;":    {"Ljava/lang/Comparable;"},
	TypeThrowable:         {"Ljava/io/Serializable;"},
	TypeClass:             {"Ljava/io/Serializable;"},
}

// IsBuiltinClass reports whether name is part of the built-in hierarchy.
func IsBuiltinClass(name string) bool {
	if name == TypeObject {
		return true
	}
	_, ok := builtinSupers[name]
	return ok
}
