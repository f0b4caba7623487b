package ast

import "arendls/internal/source"

// Referent is what a reference expression names. The set of implementations
// is closed: DeclRef, LocalRef, ModuleRef and Unresolved.
type Referent interface {
	RefName() string
	isReferent()
}

// DeclRef points at a global declaration.
type DeclRef struct{ Decl *Decl }

// LocalRef points at a parameter, lambda or let binder.
type LocalRef struct{ Binding *Binding }

// ModuleRef is a reference that names a whole module.
type ModuleRef struct{ Path source.ModulePath }

// Unresolved is left behind when resolution found nothing in scope.
type Unresolved struct{ Name string }

func (r DeclRef) RefName() string {
	if r.Decl == nil {
		return ""
	}
	return r.Decl.Name
}

func (r LocalRef) RefName() string {
	if r.Binding == nil {
		return ""
	}
	return r.Binding.Name
}

func (r ModuleRef) RefName() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

func (r Unresolved) RefName() string { return r.Name }

func (DeclRef) isReferent()    {}
func (LocalRef) isReferent()   {}
func (ModuleRef) isReferent()  {}
func (Unresolved) isReferent() {}
