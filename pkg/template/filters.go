package template

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	ttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/flosch/pongo2/v6"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

var filterOnce sync.Once

// registerFilters 注册 Ansible 常用过滤器，进程内只执行一次。
// pongo2 的过滤器参数是单个冒号值，按 Django 约定传递。
func registerFilters() {
	filterOnce.Do(func() {
		sprigFuncs := sprig.TxtFuncMap()

		pongo2.RegisterFilter("bool", filterBool)
		pongo2.RegisterFilter("int", filterInt)
		pongo2.RegisterFilter("to_json", filterToJSON)
		pongo2.RegisterFilter("to_nice_json", filterToNiceJSON)
		pongo2.RegisterFilter("to_yaml", filterToYAML)
		pongo2.RegisterFilter("b64encode", filterB64Encode)
		pongo2.RegisterFilter("b64decode", filterB64Decode)
		pongo2.RegisterFilter("regex_replace", filterRegexReplace)
		pongo2.RegisterFilter("regex_search", filterRegexSearch)
		pongo2.RegisterFilter("split", filterSplit)
		pongo2.RegisterFilter("trim", filterTrim)
		pongo2.RegisterFilter("basename", filterBasename)
		pongo2.RegisterFilter("dirname", filterDirname)
		pongo2.RegisterFilter("mandatory", filterMandatory)
		pongo2.RegisterFilter("quote", filterQuote)
		pongo2.RegisterFilter("sha1sum", sprigStringFilter(sprigFuncs, "sha1sum"))
		pongo2.RegisterFilter("sha256sum", sprigStringFilter(sprigFuncs, "sha256sum"))
	})
}

// sprigStringFilter 把 sprig 的 string → string 函数包装成 pongo2 过滤器
func sprigStringFilter(funcs ttemplate.FuncMap, name string) pongo2.FilterFunction {
	fn, _ := funcs[name].(func(string) string)
	return func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		if fn == nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: fmt.Errorf("filter %s has no backend", name)}
		}
		return pongo2.AsValue(fn(cast.ToString(in.Interface()))), nil
	}
}

func filterBool(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(asBool(in.Interface())), nil
}

func filterInt(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(cast.ToInt(in.Interface())), nil
}

func filterToJSON(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	data, err := json.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:to_json", OrigError: err}
	}
	return pongo2.AsValue(string(data)), nil
}

func filterToNiceJSON(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	data, err := json.MarshalIndent(in.Interface(), "", "  ")
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:to_nice_json", OrigError: err}
	}
	return pongo2.AsValue(string(data)), nil
}

func filterToYAML(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	data, err := yaml.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:to_yaml", OrigError: err}
	}
	return pongo2.AsValue(strings.TrimRight(string(data), "\n")), nil
}

func filterB64Encode(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	encoded := base64.StdEncoding.EncodeToString([]byte(cast.ToString(in.Interface())))
	return pongo2.AsValue(encoded), nil
}

func filterB64Decode(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	decoded, err := base64.StdEncoding.DecodeString(cast.ToString(in.Interface()))
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:b64decode", OrigError: err}
	}
	return pongo2.AsValue(string(decoded)), nil
}

// filterRegexReplace 接受 sed 风格的单参数替换描述，
// 例如 {{ name | regex_replace:"s/-dev$//" }}，s 后第一个字符为分隔符
func filterRegexReplace(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	pattern, replacement, err := parseSubstitution(cast.ToString(param.Interface()))
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:regex_replace", OrigError: err}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:regex_replace", OrigError: err}
	}

	return pongo2.AsValue(re.ReplaceAllString(cast.ToString(in.Interface()), replacement)), nil
}

// parseSubstitution 解析 s/pattern/replacement/ 描述
func parseSubstitution(spec string) (pattern, replacement string, err error) {
	if len(spec) < 4 || spec[0] != 's' {
		return "", "", fmt.Errorf("substitution %q must look like s/pattern/replacement/", spec)
	}
	delim := string(spec[1])
	parts := strings.Split(spec[2:], delim)
	if len(parts) < 2 {
		return "", "", fmt.Errorf("substitution %q must look like s/pattern/replacement/", spec)
	}
	return parts[0], parts[1], nil
}

func filterRegexSearch(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	re, err := regexp.Compile(cast.ToString(param.Interface()))
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:regex_search", OrigError: err}
	}
	return pongo2.AsValue(re.FindString(cast.ToString(in.Interface()))), nil
}

func filterSplit(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	s := cast.ToString(in.Interface())
	if param.IsNil() {
		return pongo2.AsValue(strings.Fields(s)), nil
	}
	return pongo2.AsValue(strings.Split(s, cast.ToString(param.Interface()))), nil
}

func filterTrim(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(strings.TrimSpace(cast.ToString(in.Interface()))), nil
}

func filterBasename(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(filepath.Base(cast.ToString(in.Interface()))), nil
}

func filterDirname(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(filepath.Dir(cast.ToString(in.Interface()))), nil
}

// filterMandatory 在值未定义时中断渲染
func filterMandatory(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.IsNil() {
		msg := "Mandatory variable not defined"
		if !param.IsNil() {
			msg = cast.ToString(param.Interface())
		}
		return nil, &pongo2.Error{Sender: "filter:mandatory", OrigError: fmt.Errorf("%s", msg)}
	}
	return in, nil
}

// filterQuote 按 POSIX shell 规则为值加引号
func filterQuote(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	s := cast.ToString(in.Interface())
	quoted := "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	return pongo2.AsValue(quoted), nil
}
