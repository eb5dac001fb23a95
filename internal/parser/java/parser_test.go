package java

import (
	"testing"

	"github.com/maraichr/batislens/internal/parser"
)

func parse(t *testing.T, src string) *parser.ParseResult {
	t.Helper()
	p := New()
	result, err := p.Parse(parser.FileInput{Path: "Test.java", Content: []byte(src)})
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func findType(t *testing.T, result *parser.ParseResult, qname string) parser.TypeDecl {
	t.Helper()
	for _, td := range result.Types {
		if td.QualifiedName == qname {
			return td
		}
	}
	var names []string
	for _, td := range result.Types {
		names = append(names, td.QualifiedName)
	}
	t.Fatalf("type %q not found, have %v", qname, names)
	return parser.TypeDecl{}
}

func TestBasicClass(t *testing.T) {
	src := `
package com.example;

import java.util.List;
import java.util.*;
import static java.util.Collections.emptyList;

public class User extends BaseEntity implements Serializable, Comparable<User> {
    private String name;
    public static final int MAX = 3;
    private List<String> tags;
    public String getName() { return name; }
    public void setName(String name) { this.name = name; }
    private void secret() {}
}
`
	result := parse(t, src)

	if result.Package != "com.example" {
		t.Errorf("package = %q", result.Package)
	}
	if len(result.Imports) != 1 || result.Imports[0] != "java.util.List" {
		t.Errorf("imports = %v", result.Imports)
	}
	if len(result.WildcardImports) != 1 || result.WildcardImports[0] != "java.util" {
		t.Errorf("wildcard imports = %v", result.WildcardImports)
	}

	user := findType(t, result, "com.example.User")
	if user.Kind != "class" {
		t.Errorf("kind = %q", user.Kind)
	}
	if user.SuperClass != "BaseEntity" {
		t.Errorf("superclass = %q", user.SuperClass)
	}
	if len(user.Interfaces) != 2 || user.Interfaces[1] != "Comparable<User>" {
		t.Errorf("interfaces = %v", user.Interfaces)
	}
	if len(user.Fields) != 3 {
		t.Fatalf("fields = %+v", user.Fields)
	}
	if f := user.Fields[1]; f.Name != "MAX" || !f.Static || !f.Final {
		t.Errorf("MAX field = %+v", f)
	}
	if f := user.Fields[2]; f.Type != "List<String>" {
		t.Errorf("tags type = %q", f.Type)
	}
	if len(user.Methods) != 3 {
		t.Fatalf("methods = %+v", user.Methods)
	}
	setter := user.Methods[1]
	if setter.Name != "setName" || !setter.Public || setter.ReturnType != "void" {
		t.Errorf("setter = %+v", setter)
	}
	if len(setter.Params) != 1 || setter.Params[0].Type != "String" || setter.Params[0].Name != "name" {
		t.Errorf("setter params = %+v", setter.Params)
	}
	if user.Methods[2].Public {
		t.Errorf("secret() should not be public")
	}
}

func TestMapperInterface(t *testing.T) {
	src := `
package com.example.mapper;

import org.apache.ibatis.annotations.Param;

public interface UserMapper extends BaseMapper<User> {
    User selectById(Integer id);
    List<User> search(@Param("name") String name, @Param(value = "limit") int limit);
    void touch(Map<String, Object> values, int... ids);
}
`
	result := parse(t, src)
	mapper := findType(t, result, "com.example.mapper.UserMapper")

	if mapper.Kind != "interface" {
		t.Errorf("kind = %q", mapper.Kind)
	}
	if len(mapper.Interfaces) != 1 || mapper.Interfaces[0] != "BaseMapper<User>" {
		t.Errorf("extends = %v", mapper.Interfaces)
	}
	if len(mapper.Methods) != 3 {
		t.Fatalf("methods = %+v", mapper.Methods)
	}
	for _, m := range mapper.Methods {
		if !m.Public {
			t.Errorf("%s should be implicitly public", m.Name)
		}
	}
	search := mapper.Methods[1]
	if len(search.Params) != 2 {
		t.Fatalf("search params = %+v", search.Params)
	}
	if search.Params[0].Binding != "name" || search.Params[1].Binding != "limit" {
		t.Errorf("bindings = %q, %q", search.Params[0].Binding, search.Params[1].Binding)
	}
	if search.ReturnType != "List<User>" {
		t.Errorf("return type = %q", search.ReturnType)
	}
	touch := mapper.Methods[2]
	if len(touch.Params) != 2 || touch.Params[0].Type != "Map<String,Object>" {
		t.Errorf("touch params = %+v", touch.Params)
	}
	if touch.Params[1].Type != "int[]" || touch.Params[1].Name != "ids" {
		t.Errorf("varargs param = %+v", touch.Params[1])
	}
}

func TestAliasAnnotationAndNestedTypes(t *testing.T) {
	src := `
package com.example.domain;

@Alias("person")
public class Person {
    private Address address;

    public static class Address {
        private String city;
    }

    public enum Status { ACTIVE, INACTIVE; private int code; }
}
`
	result := parse(t, src)
	person := findType(t, result, "com.example.domain.Person")
	a, ok := person.Annotation("Alias")
	if !ok || a.Value != "person" {
		t.Errorf("alias annotation = %+v, %v", a, ok)
	}

	addr := findType(t, result, "com.example.domain.Person.Address")
	if len(addr.Fields) != 1 || addr.Fields[0].Name != "city" {
		t.Errorf("address fields = %+v", addr.Fields)
	}
	status := findType(t, result, "com.example.domain.Person.Status")
	if status.Kind != "enum" || len(status.Fields) != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestModuleAliasCalls(t *testing.T) {
	src := `
package com.example;

public class AppModule extends MyBatisModule {
    @Override
    protected void initialize() {
        addSimpleAlias(com.example.domain.Person.class);
        addSimpleAlias(Order.class);
        addMapperClass(UserMapper.class);
    }
}
`
	result := parse(t, src)
	mod := findType(t, result, "com.example.AppModule")
	if mod.SuperClass != "MyBatisModule" {
		t.Errorf("superclass = %q", mod.SuperClass)
	}
	want := []string{"com.example.domain.Person", "Order"}
	if len(mod.AliasCalls) != len(want) {
		t.Fatalf("alias calls = %v", mod.AliasCalls)
	}
	for i := range want {
		if mod.AliasCalls[i] != want[i] {
			t.Errorf("alias call %d = %q, want %q", i, mod.AliasCalls[i], want[i])
		}
	}
}

func TestGenericTypeParams(t *testing.T) {
	src := `
package com.example;

public class Page<T extends Serializable> {
    private java.util.List<T> items;
}
`
	result := parse(t, src)
	page := findType(t, result, "com.example.Page")
	if len(page.TypeParams) != 1 || page.TypeParams[0] != "T" {
		t.Errorf("type params = %v", page.TypeParams)
	}
	if page.Fields[0].Type != "java.util.List<T>" {
		t.Errorf("items type = %q", page.Fields[0].Type)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Map<String, @NonNull User>", "Map<String,User>"},
		{"int []", "int[]"},
		{"java.util.List<\n  String>", "java.util.List<String>"},
	}
	for _, tt := range tests {
		if got := normalizeType(tt.in); got != tt.want {
			t.Errorf("normalizeType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
