package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func ptr(v int64) *int64 { return &v }

func TestPcgTree(t *testing.T) {
	items := []*Pcg{
		{ID: 1, Numero: "5"},
		{ID: 2, Numero: "57", ParentID: ptr(1)},
		{ID: 3, Numero: "571", ParentID: ptr(2)},
		{ID: 4, Numero: "7"},
		{ID: 5, Numero: "706", ParentID: ptr(4)},
		{ID: 6, Numero: "9", ParentID: ptr(99)}, // orphan
	}

	roots := PcgTree(items)
	if len(roots) != 3 {
		t.Fatalf("got %d roots, want 3", len(roots))
	}
	if roots[0].Numero != "5" || len(roots[0].SousComptes) != 1 {
		t.Fatalf("unexpected first root: %+v", roots[0])
	}
	if roots[0].SousComptes[0].SousComptes[0].Numero != "571" {
		t.Errorf("571 not nested under 57")
	}
	if roots[2].Numero != "9" {
		t.Errorf("orphan should become root, got %s", roots[2].Numero)
	}
}

func TestBuildTree_CycleIsCut(t *testing.T) {
	items := []*OrganizationalUnit{
		{ID: 1, Code: "A", ParentID: ptr(2)},
		{ID: 2, Code: "B", ParentID: ptr(1)},
		{ID: 3, Code: "C", ParentID: ptr(2)},
	}

	roots := UOTree(items)
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}

	count := 0
	var walk func(u *OrganizationalUnit)
	walk = func(u *OrganizationalUnit) {
		count++
		for _, c := range u.Enfants {
			walk(c)
		}
	}
	walk(roots[0])
	if count != 3 {
		t.Errorf("tree holds %d nodes, want 3", count)
	}
}

func TestIsDescendant(t *testing.T) {
	parents := map[int64]*int64{
		1: nil,
		2: ptr(1),
		3: ptr(2),
		4: ptr(1),
	}

	tests := []struct {
		ancestor, node int64
		want           bool
	}{
		{1, 3, true},
		{2, 3, true},
		{3, 3, true},
		{4, 3, false},
		{3, 1, false},
	}
	for _, tt := range tests {
		if got := IsDescendant(parents, tt.ancestor, tt.node); got != tt.want {
			t.Errorf("IsDescendant(%d, %d) = %v, want %v", tt.ancestor, tt.node, got, tt.want)
		}
	}

	cyclic := map[int64]*int64{1: ptr(2), 2: ptr(1)}
	if IsDescendant(cyclic, 5, 1) {
		t.Error("cyclic chain should terminate with false")
	}
}

func TestExtendsNumero(t *testing.T) {
	if !ExtendsNumero("57", "571") {
		t.Error("571 should extend 57")
	}
	if ExtendsNumero("57", "57") || ExtendsNumero("57", "581") {
		t.Error("unexpected prefix match")
	}
	if ClasseOf("706") != 7 || ClasseOf("") != 0 {
		t.Error("ClasseOf mismatch")
	}
}

func TestAbonnement_Transitions(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{AbonnementActif, AbonnementSuspendu, true},
		{AbonnementSuspendu, AbonnementActif, true},
		{AbonnementActif, AbonnementResilie, true},
		{AbonnementSuspendu, AbonnementResilie, true},
		{AbonnementResilie, AbonnementActif, false},
		{AbonnementExpire, AbonnementSuspendu, false},
		{AbonnementSuspendu, AbonnementExpire, true},
	}
	for _, tt := range tests {
		a := &Abonnement{Statut: tt.from}
		if got := a.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAbonnement_IsUsable(t *testing.T) {
	debut, fin := Period(time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), 30)
	if fin.Sub(debut) != 30*24*time.Hour {
		t.Fatalf("Period length = %v", fin.Sub(debut))
	}
	zero, two := 0, 2

	tests := []struct {
		name string
		a    Abonnement
		at   time.Time
		want bool
	}{
		{"active unlimited", Abonnement{Statut: AbonnementActif, DateDebut: debut, DateFin: fin}, debut.Add(time.Hour), true},
		{"active with passages", Abonnement{Statut: AbonnementActif, DateDebut: debut, DateFin: fin, PassagesRestants: &two}, debut, true},
		{"no passages left", Abonnement{Statut: AbonnementActif, DateDebut: debut, DateFin: fin, PassagesRestants: &zero}, debut, false},
		{"after end", Abonnement{Statut: AbonnementActif, DateDebut: debut, DateFin: fin}, fin, false},
		{"suspended", Abonnement{Statut: AbonnementSuspendu, DateDebut: debut, DateFin: fin}, debut, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsUsable(tt.at); got != tt.want {
				t.Errorf("IsUsable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionCaisse_Close(t *testing.T) {
	aboID := int64(1)
	tickets := []*Ticket{
		{Montant: decimal.NewFromInt(500), ModePaiement: PaiementEspeces},
		{Montant: decimal.NewFromInt(1000), ModePaiement: PaiementEspeces},
		{Montant: decimal.NewFromInt(2000), ModePaiement: PaiementMobileMoney},
		{Montant: decimal.Zero, ModePaiement: PaiementAbonnement, AbonnementID: &aboID},
	}
	totals := Totals(tickets)
	if !totals.MontantTotal.Equal(decimal.NewFromInt(3500)) || totals.Passages != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	s := &SessionCaisse{FondDeCaisse: decimal.NewFromInt(10000), Statut: SessionOuverte}
	s.Close(decimal.NewFromInt(11400), totals, time.Now())

	if s.Statut != SessionFermee || s.DateFermeture == nil {
		t.Fatalf("session not closed: %+v", s)
	}
	if !s.MontantCalcule.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("MontantCalcule = %s, want 1500", s.MontantCalcule)
	}
	if !s.Ecart.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("Ecart = %s, want -100", s.Ecart)
	}
}

func TestSchemaComptable_Validate(t *testing.T) {
	s := &SchemaComptable{Code: "vente", Libelle: "Ventes", Operation: OperationVenteTickets, Lignes: []LigneSchema{
		{CompteID: 1, Sens: SensDebit, Formule: "montant_especes"},
		{CompteID: 2, Sens: SensCredit, Formule: "montant_total"},
	}}
	if errs := s.Validate(); !errs.Valid() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if s.Code != "VENTE" {
		t.Errorf("code not normalized: %s", s.Code)
	}

	bad := &SchemaComptable{Code: "X1", Libelle: "X", Operation: "AUTRE", Lignes: []LigneSchema{
		{CompteID: 1, Sens: SensDebit, Formule: "1"},
		{CompteID: 0, Sens: SensDebit, Formule: ""},
	}}
	errs := bad.Validate()
	if len(errs) != 4 {
		t.Errorf("got %d errors, want 4: %v", len(errs), errs)
	}
}

func TestAbonne_Validate(t *testing.T) {
	a := &Abonne{Nom: "Zongo", Prenom: "Ali", CNIB: "B1234567", Telephone: "+226 70 12 34 56"}
	if errs := a.Validate(); !errs.Valid() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if a.Telephone != "+22670123456" {
		t.Errorf("telephone not normalized: %s", a.Telephone)
	}

	bad := &Abonne{Nom: "Zongo", Prenom: "Ali", CNIB: "A1234567", Telephone: "70123456"}
	if errs := bad.Validate(); len(errs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(errs), errs)
	}
}
