package pkgquery

import (
	"fmt"
	"strconv"
	"strings"
)

// match strength constants, ordered ascending so ORDER BY ... ASC is the
// "best match first" order described in §4.7.
const (
	msExactPname       = 0
	msPartialPnameDesc = 1
	msPartialPname     = 2
	msPartialDesc      = 3
	msNone             = 4
)

// compiled is an intermediate form: the SELECT-list additions, the WHERE
// conjunction, and named binds.
type compiled struct {
	selects []string
	wheres  []string
	binds   map[string]interface{}
}

func newCompiled() *compiled {
	return &compiled{binds: map[string]interface{}{}}
}

func (c *compiled) addSelect(col string)   { c.selects = append(c.selects, col) }
func (c *compiled) addWhere(cond string)   { c.wheres = append(c.wheres, cond) }
func (c *compiled) bind(name string, v interface{}) {
	c.binds[name] = v
}

func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlIn(column string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = sqlQuote(v)
	}
	return column + " IN ( " + strings.Join(quoted, ", ") + " )"
}

// build compiles Args into a SELECT statement (string) plus its named
// binds, matching the structure of §4.7 exactly: a computed-column inner
// SELECT wrapped by an outer `SELECT id, ... FROM ( ... ) ORDER BY ...`.
func build(a *Args) (string, map[string]interface{}, error) {
	if len(a.Systems) == 0 {
		cp := *a
		cp.Systems = []string{HostSystem()}
		a = &cp
	}

	if err := a.validate(); err != nil {
		return "", nil, err
	}

	c := newCompiled()

	// --- name / pname ---
	if a.Name != "" {
		c.addWhere("name = :name")
		c.bind(":name", a.Name)
	}
	if a.Pname != "" {
		c.addWhere("pname = :pname")
		c.bind(":pname", a.Pname)
	}

	// --- match / matchStrength ---
	if a.Match != "" {
		c.addWhere("( pname LIKE :match ) OR ( description LIKE :match )")
		c.bind(":match", "%"+a.Match+"%")
		c.addSelect(fmt.Sprintf(
			`iif( ( '%%' || LOWER( pname ) || '%%' ) = LOWER( :match )
			     , %d
			     , iif( ( pname LIKE :match )
			          , iif( ( description LIKE :match ), %d, %d )
			          , %d
			          )
			     ) AS matchStrength`,
			msExactPname, msPartialPnameDesc, msPartialPname, msPartialDesc))
	} else {
		c.addSelect(fmt.Sprintf("%d AS matchStrength", msNone))
	}

	// --- version / semver ---
	if a.Version != "" {
		c.addWhere("version = :version")
		c.bind(":version", a.Version)
	} else if a.Semver != "" {
		c.addWhere("semver IS NOT NULL")
	}

	// --- licenses ---
	if len(a.Licenses) > 0 {
		c.addWhere("license IS NOT NULL")
		c.addWhere(sqlIn("license", a.Licenses))
	}

	// --- broken / unfree ---
	if !a.AllowBroken {
		c.addWhere("( broken IS NULL ) OR ( broken = FALSE )")
	}
	if a.DenyUnfree {
		c.addWhere("( unfree IS NULL ) OR ( unfree = FALSE )")
	}

	// --- subtrees ---
	if len(a.Subtrees) > 0 {
		names := make([]string, len(a.Subtrees))
		for i, s := range a.Subtrees {
			names[i] = s.String()
		}
		c.addWhere(sqlIn("subtree", names))
		c.addSelect("0 AS subtreesRank")
		if len(names) > 1 {
			c.selects[len(c.selects)-1] = rankExpr("subtree", names) + " AS subtreesRank"
		}
	} else {
		c.addSelect("0 AS subtreesRank")
	}

	// --- systems ---
	if len(a.Systems) > 0 {
		c.addWhere(sqlIn("system", a.Systems))
	}
	if len(a.Systems) > 1 {
		c.addSelect(rankExpr("system", a.Systems) + " AS systemsRank")
	} else {
		c.addSelect("0 AS systemsRank")
	}

	// --- stabilities ---
	if len(a.Stabilities) > 0 {
		cond := "( stability IS NULL ) OR ( " + sqlIn("stability", a.Stabilities) + " )"
		c.addWhere(cond)
		if len(a.Stabilities) > 1 {
			c.addSelect("iif( ( stability IS NULL ), NULL, " + rankExprBody("stability", a.Stabilities) + " ) AS stabilitiesRank")
		} else {
			c.addSelect("0 AS stabilitiesRank")
		}
	} else {
		c.addSelect("0 AS stabilitiesRank")
	}

	innerSelect := "*"
	if len(c.selects) > 0 {
		innerSelect = "*, " + strings.Join(c.selects, ", ")
	}

	whereClause := ""
	if len(c.wheres) > 0 {
		parts := make([]string, len(c.wheres))
		for i, w := range c.wheres {
			parts[i] = "( " + w + " )"
		}
		whereClause = " WHERE " + strings.Join(parts, " AND ")
	}

	preTagOrder := "preTag DESC NULLS FIRST"
	if a.PreferPreReleases {
		preTagOrder = "preTag DESC NULLS LAST"
	}

	orderBy := strings.Join([]string{
		"matchStrength ASC",
		"subtreesRank ASC",
		"systemsRank ASC",
		"stabilitiesRank ASC NULLS LAST",
		"pname ASC",
		"major DESC NULLS LAST",
		"minor DESC NULLS LAST",
		"patch DESC NULLS LAST",
		preTagOrder,
	}, ", ")

	query := fmt.Sprintf(
		"SELECT id, version, semver, matchStrength, subtreesRank, systemsRank, stabilitiesRank, broken, unfree"+
			" FROM ( SELECT %s FROM v_PackagesSearch%s ) ORDER BY %s",
		innerSelect, whereClause, orderBy)

	return query, c.binds, nil
}

// rankExpr builds `iif(col = v0, 0, iif(col = v1, 1, ... , N))`-shaped
// expressions (§4.7's subtree/system rank construction); callers append
// the `AS alias`.
func rankExpr(column string, values []string) string {
	return rankExprBody(column, values)
}

func rankExprBody(column string, values []string) string {
	var b strings.Builder
	for i, v := range values {
		fmt.Fprintf(&b, "iif( ( %s = %s ), %d, ", column, sqlQuote(v), i)
	}
	b.WriteString(strconv.Itoa(len(values)))
	for range values {
		b.WriteString(" )")
	}
	return b.String()
}
