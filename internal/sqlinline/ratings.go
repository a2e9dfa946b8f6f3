package sqlinline

const QUpsertRating = `--sql ec81d8a9-fb0f-4a39-b44c-690777efac7c
insert into ratings (resource_id, user_id, value, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::int, now(), now())
on conflict (resource_id, user_id) do update set
  value = excluded.value,
  updated_at = now();
`

const QRecomputeResourceRating = `--sql dbf2240b-9dbb-467f-a553-4a05ab02319c
update resources r
set average_rating = agg.avg_value,
    total_ratings = agg.total,
    updated_at = now()
from (
  select coalesce(avg(value), 0)::numeric(3,2) as avg_value, count(*) as total
  from ratings
  where resource_id = $1::uuid
) agg
where r.id = $1::uuid
returning r.average_rating, r.total_ratings;
`

const QSelectUserRating = `--sql e26fa506-2f65-4e64-a7ae-4d5350f708d2
select value
from ratings
where resource_id = $1::uuid and user_id = $2::uuid
limit 1;
`
