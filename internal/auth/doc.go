// Package auth holds the authorisation model of the admin console.
//
// It contains three pieces that have no I/O and no shared state:
//   - The role catalog: a closed set of four roles, each with a hierarchy
//     rank and a default permission set fixed at compile time.
//   - UserProfile ingestion: the server-asserted identity snapshot returned by
//     /api/auth/me, with the roles field normalised to a list at decode time.
//   - The decision engine: pure predicates answering "can this profile do X".
//
// Permission checks use a two-tier policy. When the server supplies an
// explicit permissions list it is authoritative and roles are ignored. When
// it does not, a permission is granted if any of the user's roles carries it
// in the catalog. Minimum-role checks always consult the hierarchy ranks.
//
// Every predicate resolves malformed or missing input to false. None of them
// return errors.
package auth
