package beans

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// TypeConverter 类型转换协作方。容器只依赖这一个窄接口，完整的
// 转换体系不在本仓库范围内。
type TypeConverter interface {
	ConvertIfNecessary(value any, targetType reflect.Type) (any, error)
}

// simpleTypeConverter 默认实现：直接可赋值/可转换的走 reflect，
// 字符串到基础类型的走 strconv，时长字符串走 time.ParseDuration。
type simpleTypeConverter struct{}

func (simpleTypeConverter) ConvertIfNecessary(value any, targetType reflect.Type) (any, error) {
	if targetType == nil || value == nil {
		return value, nil
	}
	vt := reflect.TypeOf(value)
	if vt.AssignableTo(targetType) {
		return value, nil
	}

	if s, ok := value.(string); ok {
		converted, err := convertString(s, targetType)
		if err != nil {
			return nil, &TypeMismatchError{Value: value, TargetType: targetType.String(), Err: err}
		}
		return converted, nil
	}

	if vt.ConvertibleTo(targetType) {
		return reflect.ValueOf(value).Convert(targetType).Interface(), nil
	}

	return nil, &TypeMismatchError{Value: value, TargetType: targetType.String()}
}

func convertString(s string, targetType reflect.Type) (any, error) {
	if targetType == reflect.TypeOf(time.Duration(0)) {
		return time.ParseDuration(s)
	}
	switch targetType.Kind() {
	case reflect.String:
		return s, nil
	case reflect.Bool:
		return strconv.ParseBool(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, targetType.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(targetType).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, targetType.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(targetType).Interface(), nil
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(s, targetType.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(targetType).Interface(), nil
	default:
		return nil, fmt.Errorf("no conversion from string to %s", targetType)
	}
}
